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

// Package server is the HTTP boundary of the contact pipeline. It decodes
// POST /api/contact, hands the message to the orchestrator and renders the
// result as either a success body or an application/problem+json response.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jearle/portfolio-contact/internal/contact"
	"github.com/jearle/portfolio-contact/internal/correlation"
	"github.com/jearle/portfolio-contact/internal/logging"
	"github.com/jearle/portfolio-contact/internal/metrics"
	"github.com/jearle/portfolio-contact/internal/models"
	"github.com/jearle/portfolio-contact/internal/problem"
)

const (
	// MaxBodyBytes caps the size of a contact request body.
	MaxBodyBytes = 64 << 10

	// SuccessMessage is returned in the body of a delivered request.
	SuccessMessage = "Message sent successfully"

	shutdownTimeout = 10 * time.Second
)

// Pipeline processes one contact message.
type Pipeline interface {
	Process(ctx context.Context, msg models.InboundMessage) (contact.Receipt, error)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Options configures the router.
type Options struct {
	Pipeline Pipeline
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	// TypeBase prefixes problem type URIs. Empty selects
	// problem.DefaultTypeBase.
	TypeBase string

	// TrustProxy resolves the caller address from X-Forwarded-For /
	// X-Real-IP. Enable only behind a proxy that overwrites those headers.
	TrustProxy bool

	// Checks run on GET /health, keyed by dependency name.
	Checks map[string]HealthCheck
}

// Handler serves the contact API.
type Handler struct {
	pipeline Pipeline
	logger   *slog.Logger
	typeBase string
	checks   map[string]HealthCheck
}

// NewHandler creates a Handler.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline: opts.Pipeline,
		logger:   logging.Component(logger, "http"),
		typeBase: opts.TypeBase,
		checks:   opts.Checks,
	}, nil
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(opts Options) (http.Handler, error) {
	h, err := NewHandler(opts)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(correlation.Middleware)
	r.Use(h.recoverer)

	r.Post("/api/contact", h.ServeContact)
	r.Get("/health", h.ServeHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	return r, nil
}

// ServeContact handles POST /api/contact.
func (h *Handler) ServeContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cc, ok := correlation.From(ctx)
	if !ok {
		cc = correlation.New(correlation.SourceAddress(r))
		ctx = correlation.With(ctx, cc)
		w.Header().Set(correlation.Header, cc.RequestID.String())
	}

	var body models.ContactRequest
	if err := decodeBody(w, r, &body); err != nil {
		cc.Logger(h.logger).Warn("contact request body rejected", logging.KeyError, err)
		h.writeProblem(w, cc, problem.NewValidation(map[string][]string{
			"body": {bodyErrorMessage(err)},
		}).WithDetail("The request body could not be parsed."))
		return
	}

	receipt, err := h.pipeline.Process(ctx, body.Inbound(cc.SourceAddress))
	if err != nil {
		h.writeProblem(w, cc, problem.From(err))
		return
	}

	writeRateLimitHeaders(w, receipt)
	writeJSON(w, http.StatusOK, models.ContactResponse{Success: true, Message: SuccessMessage})
}

// ServeHealth handles GET /health.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", "dependency", name, logging.KeyError, err)
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"checks": failed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) writeProblem(w http.ResponseWriter, cc correlation.Context, p *problem.Problem) {
	if p.Instance() == "" {
		p = p.WithInstance(cc.Instance())
	}
	if err := p.Write(w, h.typeBase); err != nil {
		cc.Logger(h.logger).Error("write problem response", logging.KeyError, err)
	}
}

// recoverer turns a panic in a handler into an Unexpected problem.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			cc, _ := correlation.From(r.Context())
			cc.Logger(h.logger).Error("handler panic", "panic", fmt.Sprint(rec), "path", r.URL.Path)
			h.writeProblem(w, cc, problem.NewUnexpected(fmt.Errorf("panic: %v", rec)))
		}()
		next.ServeHTTP(w, r)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

func bodyErrorMessage(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return "Request body is too large"
	}
	return "Request body must be a JSON object"
}

func writeRateLimitHeaders(w http.ResponseWriter, receipt contact.Receipt) {
	d := receipt.RateLimit
	if d.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve starts the HTTP server on the given port.
// It binds the port immediately and signals readiness via the returned channel
// before starting to accept connections. The server shuts down gracefully
// when ctx is cancelled; done is closed once in-flight requests have
// drained.
func Serve(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) (ready <-chan struct{}, done <-chan struct{}, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("bind http port %d: %w", port, err)
	}

	readyCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		<-ctx.Done()
		logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown", logging.KeyError, err)
			server.Close()
		}
	}()

	go func() {
		logger.Info("http server listening", "port", port)
		close(readyCh)
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", logging.KeyError, err)
		}
	}()

	return readyCh, doneCh, nil
}
