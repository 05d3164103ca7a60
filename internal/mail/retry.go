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

package mail

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jearle/portfolio-contact/internal/models"
)

const (
	// DefaultMaxAttempts is the total number of tries, first one included.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the backoff before the second attempt; it doubles
	// after each failure.
	DefaultBaseDelay = 100 * time.Millisecond

	// DefaultMaxDelay caps a single backoff.
	DefaultMaxDelay = 5 * time.Second
)

// RetryPolicy configures exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps each backoff. Zero selects DefaultMaxDelay.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns 3 attempts with a 100ms base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	return p
}

// Delay returns the backoff slept after the given zero-based failed attempt:
// BaseDelay * 2^attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	return min(d, p.MaxDelay)
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Retry stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Retry calls op until it succeeds, returns a permanent error, the context
// ends, or the policy's attempts are exhausted. It returns the number of
// attempts made and the last error.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context, attempt int) error) (int, error) {
	policy = policy.normalized()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(policy.Delay(attempt - 1)):
			case <-ctx.Done():
				return attempt, errors.Join(lastErr, ctx.Err())
			}
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if IsPermanent(lastErr) || ctx.Err() != nil {
			return attempt + 1, lastErr
		}
	}
	return policy.MaxAttempts, lastErr
}

// AttemptObserver is notified of every transport attempt.
type AttemptObserver interface {
	ObserveDeliveryAttempt(provider string, err error)
}

// Retrying wraps a Sender with exponential backoff. It composes around any
// Sender implementation.
type Retrying struct {
	next     Sender
	policy   RetryPolicy
	logger   *slog.Logger
	observer AttemptObserver
}

// NewRetrying wraps next. observer may be nil.
func NewRetrying(next Sender, policy RetryPolicy, logger *slog.Logger, observer AttemptObserver) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{
		next:     next,
		policy:   policy.normalized(),
		logger:   logger,
		observer: observer,
	}
}

// Name returns the wrapped transport's name.
func (r *Retrying) Name() string { return r.next.Name() }

// Send implements Sender.
func (r *Retrying) Send(ctx context.Context, msg *models.OutboundEmail) (string, error) {
	var id string
	_, err := Retry(ctx, r.policy, func(ctx context.Context, attempt int) error {
		var err error
		id, err = r.next.Send(ctx, msg)
		recordAttempt(ctx, r.next.Name())
		if r.observer != nil {
			r.observer.ObserveDeliveryAttempt(r.next.Name(), err)
		}
		if err != nil {
			r.logger.WarnContext(ctx, "delivery attempt failed",
				"provider", r.next.Name(),
				"attempt", attempt+1,
				"max_attempts", r.policy.MaxAttempts,
				"permanent", IsPermanent(err),
				"error", err,
			)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// attemptTracker collects per-delivery attempt counts across wrappers.
type attemptTracker struct {
	attempts int
	provider string
}

type trackerKey struct{}

func withTracker(ctx context.Context, t *attemptTracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

func recordAttempt(ctx context.Context, provider string) {
	if t, ok := ctx.Value(trackerKey{}).(*attemptTracker); ok {
		t.attempts++
		t.provider = provider
	}
}
