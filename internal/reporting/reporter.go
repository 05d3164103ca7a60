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

// Package reporting forwards operationally significant failures to an
// error-tracking sink. Only server-class failures are reported; expected
// client errors never reach it.
package reporting

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Breadcrumb records one pipeline step leading up to a failure.
type Breadcrumb struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Report is one error event enriched with request context.
type Report struct {
	RequestID     string            `json:"requestId"`
	SourceAddress string            `json:"sourceAddress"`
	Kind          string            `json:"kind"`
	Status        int               `json:"status"`
	Stage         string            `json:"stage"`
	Detail        string            `json:"detail"`
	Error         string            `json:"error"`
	Tags          map[string]string `json:"tags,omitempty"`
	Breadcrumbs   []Breadcrumb      `json:"breadcrumbs,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// Reporter sends a report to a sink.
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// LogReporter writes reports as structured ERROR records.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a reporter over logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements Reporter.
func (l *LogReporter) Report(ctx context.Context, r Report) error {
	crumbs := make([]any, 0, len(r.Breadcrumbs))
	for _, b := range r.Breadcrumbs {
		crumbs = append(crumbs, b.Stage+": "+b.Message)
	}

	l.logger.LogAttrs(ctx, slog.LevelError, "error report",
		slog.String("requestId", r.RequestID),
		slog.String("sourceAddress", r.SourceAddress),
		slog.String("kind", r.Kind),
		slog.Int("status", r.Status),
		slog.String("stage", r.Stage),
		slog.String("error", r.Error),
		slog.Any("tags", r.Tags),
		slog.Any("breadcrumbs", crumbs),
	)
	return nil
}

// Fanout delivers each report to every reporter and joins their errors.
type Fanout []Reporter

// Report implements Reporter.
func (f Fanout) Report(ctx context.Context, r Report) error {
	var errs []error
	for _, rep := range f {
		if err := rep.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Detached returns a context that survives cancellation of ctx and is bounded
// by timeout, so a report about a timed-out request still gets written.
func Detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
