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

// Package contact is the request orchestrator of the contact pipeline. It
// runs the stages in a fixed order (validate, verify anti-spam, check the
// rate limit, deliver), stops at the first failure and converts every
// failure into exactly one problem.Kind.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jearle/portfolio-contact/internal/correlation"
	"github.com/jearle/portfolio-contact/internal/logging"
	"github.com/jearle/portfolio-contact/internal/mail"
	"github.com/jearle/portfolio-contact/internal/metrics"
	"github.com/jearle/portfolio-contact/internal/models"
	"github.com/jearle/portfolio-contact/internal/problem"
	"github.com/jearle/portfolio-contact/internal/ratelimit"
	"github.com/jearle/portfolio-contact/internal/reporting"
)

const (
	// DefaultRequestTimeout bounds one request across every stage.
	DefaultRequestTimeout = 15 * time.Second

	reportTimeout = 5 * time.Second
)

// Verifier checks an anti-spam token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (models.VerificationResult, error)
}

// Limiter decides per-address admission.
type Limiter interface {
	Check(ctx context.Context, sourceAddress string) (ratelimit.Decision, error)
}

// Deliverer sends the notification email.
type Deliverer interface {
	Deliver(ctx context.Context, msg *models.OutboundEmail) (models.DeliveryOutcome, error)
}

// Config wires a Processor.
type Config struct {
	Verifier  Verifier
	Limiter   Limiter
	Deliverer Deliverer
	Reporter  reporting.Reporter
	Logger    *slog.Logger
	Metrics   *metrics.Metrics

	From          models.EmailAddress
	To            models.EmailAddress
	SubjectPrefix string

	RequestTimeout time.Duration
}

// Processor runs contact requests. It holds no per-request state and is
// safe for concurrent use.
type Processor struct {
	verifier  Verifier
	limiter   Limiter
	deliverer Deliverer
	reporter  reporting.Reporter
	logger    *slog.Logger
	metrics   *metrics.Metrics

	from          models.EmailAddress
	to            models.EmailAddress
	subjectPrefix string
	timeout       time.Duration
}

// NewProcessor validates cfg and creates a Processor.
func NewProcessor(cfg Config) (*Processor, error) {
	switch {
	case cfg.Verifier == nil:
		return nil, errors.New("contact: verifier is required")
	case cfg.Limiter == nil:
		return nil, errors.New("contact: limiter is required")
	case cfg.Deliverer == nil:
		return nil, errors.New("contact: deliverer is required")
	case cfg.To.Address == "" || cfg.From.Address == "":
		return nil, errors.New("contact: sender and recipient addresses are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = reporting.NewLogReporter(logger)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Processor{
		verifier:      cfg.Verifier,
		limiter:       cfg.Limiter,
		deliverer:     cfg.Deliverer,
		reporter:      reporter,
		logger:        logging.Component(logger, "contact"),
		metrics:       cfg.Metrics,
		from:          cfg.From,
		to:            cfg.To,
		subjectPrefix: cfg.SubjectPrefix,
		timeout:       timeout,
	}, nil
}

// Receipt describes a successful request.
type Receipt struct {
	RequestID uuid.UUID
	RateLimit ratelimit.Decision
	Delivery  models.DeliveryOutcome
}

// run is the state of one request.
type run struct {
	cc     correlation.Context
	log    *slog.Logger
	state  State
	crumbs []reporting.Breadcrumb
	tags   map[string]string
}

func (r *run) transition(to State, message string) {
	r.log.Debug("pipeline transition", "from", r.state.String(), "to", to.String())
	r.state = to
	r.crumbs = append(r.crumbs, reporting.Breadcrumb{
		Stage:   to.String(),
		Message: message,
		At:      time.Now().UTC(),
	})
}

// Process runs msg through the pipeline. A nil error means the message was
// delivered; otherwise the error is always a *problem.Problem.
func (p *Processor) Process(ctx context.Context, msg models.InboundMessage) (Receipt, error) {
	cc, ok := correlation.From(ctx)
	if !ok {
		cc = correlation.New(msg.SourceAddress)
		ctx = correlation.With(ctx, cc)
	}
	if msg.SourceAddress == "" {
		msg.SourceAddress = cc.SourceAddress
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	r := &run{
		cc:    cc,
		log:   cc.Logger(p.logger),
		state: StateReceived,
		tags:  map[string]string{},
	}
	r.crumbs = append(r.crumbs, reporting.Breadcrumb{Stage: StateReceived.String(), Message: "request received", At: time.Now().UTC()})
	r.log.Info("contact request received", "sourceAddress", msg.SourceAddress)

	receipt, err := p.execute(ctx, r, msg)
	if err != nil {
		return Receipt{}, p.fail(ctx, r, err)
	}

	r.transition(StateSucceeded, "message delivered")
	p.metrics.ObserveRequest("success")
	r.log.Info("contact request succeeded",
		"provider", receipt.Delivery.Provider,
		"provider_message_id", receipt.Delivery.ProviderMessageID,
		"attempts", receipt.Delivery.Attempts,
		"remaining", receipt.RateLimit.Remaining,
	)
	return receipt, nil
}

// execute runs the stages in order and returns at the first failure.
func (p *Processor) execute(ctx context.Context, r *run, msg models.InboundMessage) (Receipt, error) {
	receipt := Receipt{RequestID: r.cc.RequestID}

	var clean models.InboundMessage
	err := p.stage(r, StateValidating, func() error {
		var fieldErrs map[string][]string
		clean, fieldErrs = Validate(msg)
		if fieldErrs != nil {
			return problem.NewValidation(fieldErrs).WithDetail("One or more fields are invalid.")
		}
		return nil
	})
	if err != nil {
		return receipt, err
	}

	err = p.stage(r, StateVerifyingAntiSpam, func() error {
		res, err := p.verifier.Verify(ctx, clean.AntiSpamToken, clean.SourceAddress)
		if err != nil {
			return fmt.Errorf("anti-spam verification: %w", err)
		}
		if !res.Passed {
			return problem.NewAntiSpam(res.DiagnosticCodes)
		}
		return nil
	})
	if err != nil {
		return receipt, err
	}

	err = p.stage(r, StateCheckingRateLimit, func() error {
		d, err := p.limiter.Check(ctx, clean.SourceAddress)
		if err != nil {
			return err
		}
		receipt.RateLimit = d
		if !d.Admitted {
			return problem.NewRateLimited(d.RetryAfterSeconds).
				WithDetail("Too many requests. Please try again in " + strconv.Itoa(d.RetryAfterSeconds) + " seconds.")
		}
		return nil
	})
	if err != nil {
		return receipt, err
	}

	err = p.stage(r, StateDelivering, func() error {
		email, err := mail.BuildNotification(clean, p.from, p.to, p.subjectPrefix)
		if err != nil {
			return fmt.Errorf("build notification: %w", err)
		}
		outcome, err := p.deliverer.Deliver(ctx, email)
		r.tags["provider"] = outcome.Provider
		if err != nil {
			r.log.Error("delivery failed",
				"provider", outcome.Provider,
				"attempts", outcome.Attempts,
				logging.KeyError, outcome.FailureReason,
			)
			if ctx.Err() != nil {
				return err
			}
			return problem.NewDelivery(err)
		}
		receipt.Delivery = outcome
		return nil
	})
	return receipt, err
}

// stage transitions into s, runs fn and records its duration.
func (p *Processor) stage(r *run, s State, fn func() error) error {
	r.transition(s, "started")
	start := time.Now()
	err := fn()
	p.metrics.ObserveStage(s.String(), time.Since(start))
	return err
}

// fail classifies err, logs it at the level its kind calls for, reports
// server-class failures and returns the problem for the caller.
func (p *Processor) fail(ctx context.Context, r *run, err error) *problem.Problem {
	failedStage := r.state

	prob := problem.From(err)
	if ctx.Err() != nil && prob.Operational() {
		prob = problem.NewUnexpected(err).WithDetail("The request timed out.")
	}
	prob = prob.WithInstance(r.cc.Instance())

	r.transition(StateFailed, prob.Kind().String()+" during "+failedStage.String())
	p.metrics.ObserveRequest(prob.Kind().String())

	attrs := []any{
		"stage", failedStage.String(),
		"kind", prob.Kind().String(),
		"status", prob.Status(),
	}

	if !prob.Operational() {
		switch prob.Kind() {
		case problem.KindValidation:
			attrs = append(attrs, "fieldErrors", prob.FieldErrors())
		case problem.KindAntiSpam:
			attrs = append(attrs, "diagnosticCodes", prob.DiagnosticCodes())
		case problem.KindRateLimited:
			attrs = append(attrs, "retryAfterSeconds", prob.RetryAfterSeconds())
		}
		r.log.Warn("contact request rejected", attrs...)
		return prob
	}

	r.log.Error("contact request failed", append(attrs, logging.KeyError, err.Error())...)

	tags := map[string]string{
		"stage":  failedStage.String(),
		"kind":   prob.Kind().String(),
		"status": strconv.Itoa(prob.Status()),
	}
	for k, v := range r.tags {
		if v != "" {
			tags[k] = v
		}
	}

	reportCtx, cancel := reporting.Detached(ctx, reportTimeout)
	defer cancel()
	rerr := p.reporter.Report(reportCtx, reporting.Report{
		RequestID:     r.cc.RequestID.String(),
		SourceAddress: r.cc.SourceAddress,
		Kind:          prob.Kind().String(),
		Status:        prob.Status(),
		Stage:         failedStage.String(),
		Detail:        prob.Detail(),
		Error:         err.Error(),
		Tags:          tags,
		Breadcrumbs:   r.crumbs,
		OccurredAt:    time.Now().UTC(),
	})
	if rerr != nil {
		r.log.Error("error report failed", logging.KeyError, rerr)
	}
	return prob
}
