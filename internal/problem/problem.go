// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package problem implements the pipeline's error taxonomy. Every stage
// failure is a *Problem of exactly one Kind, and each Kind maps statically to
// an HTTP status and a category URI. Problems serialise to the
// application/problem+json wire format (RFC 9457).
package problem

import (
	"errors"
	"fmt"
	"slices"
)

// Kind enumerates the closed set of failure categories.
type Kind int

const (
	// KindUnexpected covers anything that is not otherwise classified.
	// It is the zero value so an unset kind can never pass as a client error.
	KindUnexpected Kind = iota
	KindValidation
	KindAntiSpam
	KindRateLimited
	KindDelivery
)

// ContentType is the media type of a serialised problem.
const ContentType = "application/problem+json"

// DefaultTypeBase prefixes every category suffix.
const DefaultTypeBase = "/problems/"

type kindInfo struct {
	status int
	suffix string
	title  string
	detail string
}

var kinds = map[Kind]kindInfo{
	KindValidation:  {400, "validation-error", "Validation Error", "The submitted data is invalid."},
	KindAntiSpam:    {403, "turnstile-error", "Verification Failed", "Anti-spam verification failed. Please try again."},
	KindRateLimited: {429, "rate-limit-error", "Too Many Requests", "Too many requests. Please try again later."},
	KindDelivery:    {500, "email-error", "Email Delivery Failed", "Your message could not be sent. Please try again later."},
	KindUnexpected:  {500, "internal-server-error", "Internal Server Error", "An unexpected error occurred."},
}

func (k Kind) info() kindInfo {
	if i, ok := kinds[k]; ok {
		return i
	}
	return kinds[KindUnexpected]
}

// Status returns the HTTP status statically associated with the kind.
func (k Kind) Status() int { return k.info().status }

// Suffix returns the category suffix, e.g. "rate-limit-error".
func (k Kind) Suffix() string { return k.info().suffix }

// Title returns the human readable summary of the kind.
func (k Kind) Title() string { return k.info().title }

// Operational reports whether failures of this kind are server-class and
// worth alerting on.
func (k Kind) Operational() bool { return k.Status() >= 500 }

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationFailed"
	case KindAntiSpam:
		return "AntiSpamFailed"
	case KindRateLimited:
		return "RateLimited"
	case KindDelivery:
		return "DeliveryFailed"
	default:
		return "Unexpected"
	}
}

// Problem is an immutable failure value. Construct it with one of the New*
// functions; the zero value is not meaningful.
type Problem struct {
	kind       Kind
	detail     string
	instance   string
	fieldErrs  map[string][]string
	retryAfter int
	codes      []string
	cause      error
}

// NewValidation reports input-shape or content violations. fieldErrors maps
// a field name to one or more messages.
func NewValidation(fieldErrors map[string][]string) *Problem {
	cp := make(map[string][]string, len(fieldErrors))
	for k, v := range fieldErrors {
		cp[k] = slices.Clone(v)
	}
	return &Problem{kind: KindValidation, fieldErrs: cp}
}

// NewAntiSpam reports a failed anti-spam challenge. The diagnostic codes are
// kept for logs and are not serialised.
func NewAntiSpam(codes []string) *Problem {
	return &Problem{kind: KindAntiSpam, codes: slices.Clone(codes)}
}

// NewRateLimited reports a quota violation. retryAfterSeconds is clamped to
// at least 1.
func NewRateLimited(retryAfterSeconds int) *Problem {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	return &Problem{kind: KindRateLimited, retryAfter: retryAfterSeconds}
}

// NewDelivery reports a downstream delivery failure. cause is retained for
// logs only.
func NewDelivery(cause error) *Problem {
	return &Problem{kind: KindDelivery, cause: cause}
}

// NewUnexpected wraps an unclassified failure.
func NewUnexpected(cause error) *Problem {
	return &Problem{kind: KindUnexpected, cause: cause}
}

// WithDetail returns a copy of p carrying a caller-facing detail message.
func (p *Problem) WithDetail(detail string) *Problem {
	cp := *p
	cp.detail = detail
	return &cp
}

// WithInstance returns a copy of p identifying the specific occurrence,
// typically "urn:uuid:<request id>".
func (p *Problem) WithInstance(instance string) *Problem {
	cp := *p
	cp.instance = instance
	return &cp
}

// From converts err into a *Problem. Problems pass through unchanged; any
// other error becomes KindUnexpected. A nil error yields nil.
func From(err error) *Problem {
	if err == nil {
		return nil
	}
	var p *Problem
	if errors.As(err, &p) {
		return p
	}
	return NewUnexpected(err)
}

// Kind returns the failure category.
func (p *Problem) Kind() Kind { return p.kind }

// Status returns the HTTP status for the problem's kind.
func (p *Problem) Status() int { return p.kind.Status() }

// Title returns the kind's summary.
func (p *Problem) Title() string { return p.kind.Title() }

// Instance returns the occurrence URI, or "".
func (p *Problem) Instance() string { return p.instance }

// Detail returns the caller-facing explanation.
func (p *Problem) Detail() string {
	if p.detail != "" {
		return p.detail
	}
	return p.kind.info().detail
}

// FieldErrors returns a copy of the validation field errors.
func (p *Problem) FieldErrors() map[string][]string {
	if p.fieldErrs == nil {
		return nil
	}
	cp := make(map[string][]string, len(p.fieldErrs))
	for k, v := range p.fieldErrs {
		cp[k] = slices.Clone(v)
	}
	return cp
}

// RetryAfterSeconds is non-zero only for KindRateLimited.
func (p *Problem) RetryAfterSeconds() int { return p.retryAfter }

// DiagnosticCodes returns the anti-spam diagnostic codes, if any.
func (p *Problem) DiagnosticCodes() []string { return slices.Clone(p.codes) }

// Operational reports whether p is server-class.
func (p *Problem) Operational() bool { return p.kind.Operational() }

func (p *Problem) Error() string {
	if p.cause != nil {
		return fmt.Sprintf("%s: %s: %v", p.kind, p.Detail(), p.cause)
	}
	return fmt.Sprintf("%s: %s", p.kind, p.Detail())
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (p *Problem) Unwrap() error { return p.cause }

// Extensions returns the category-specific members of the wire format.
func (p *Problem) Extensions() map[string]any {
	ext := map[string]any{}
	switch p.kind {
	case KindValidation:
		fe := p.FieldErrors()
		if fe == nil {
			fe = map[string][]string{}
		}
		ext["fieldErrors"] = fe
	case KindRateLimited:
		ext["retryAfterSeconds"] = p.retryAfter
	}
	return ext
}
