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

package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TestLogReporter verifies the report is one ERROR record with context.
func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := r.Report(context.Background(), Report{
		RequestID: "req-1",
		Kind:      "DeliveryFailed",
		Status:    500,
		Stage:     "delivering",
		Error:     "resend: 503",
		Breadcrumbs: []Breadcrumb{
			{Stage: "validating", Message: "ok"},
			{Stage: "delivering", Message: "failed"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if line["level"] != "ERROR" {
		t.Errorf("level = %v", line["level"])
	}
	if line["requestId"] != "req-1" {
		t.Errorf("requestId = %v", line["requestId"])
	}
	crumbs, _ := line["breadcrumbs"].([]any)
	if len(crumbs) != 2 {
		t.Errorf("breadcrumbs = %v", line["breadcrumbs"])
	}
}

type failingReporter struct{ err error }

func (f failingReporter) Report(context.Context, Report) error { return f.err }

type countingReporter struct {
	mu sync.Mutex
	n  int
}

func (c *countingReporter) Report(context.Context, Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

// TestFanout verifies every reporter is called and errors are joined.
func TestFanout(t *testing.T) {
	c := &countingReporter{}
	boom := errors.New("boom")
	f := Fanout{failingReporter{boom}, c}

	err := f.Report(context.Background(), Report{})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if c.n != 1 {
		t.Errorf("second reporter called %d times", c.n)
	}
}

// TestDetached verifies the report context outlives a cancelled request.
func TestDetached(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	ctx, done := Detached(parent, time.Second)
	defer done()
	if ctx.Err() != nil {
		t.Errorf("detached context already done: %v", ctx.Err())
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Error("detached context should carry a deadline")
	}
}

// fakeDB records Exec calls.
type fakeDB struct {
	mu    sync.Mutex
	execs []string
	args  [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

// TestPostgresReporter_Report verifies schema creation and the insert.
func TestPostgresReporter_Report(t *testing.T) {
	db := &fakeDB{}
	p, err := NewPostgresReporter(context.Background(), db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS error_reports") {
		t.Fatalf("schema not ensured: %v", db.execs)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = p.Report(context.Background(), Report{
		RequestID:  "req-9",
		Kind:       "Unexpected",
		Status:     500,
		Tags:       map[string]string{"stage": "checking_rate_limit"},
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(db.args) != 2 {
		t.Fatalf("exec count = %d, want 2", len(db.args))
	}
	args := db.args[1]
	if args[0] != "req-9" || args[3] != 500 {
		t.Errorf("args = %v", args)
	}
	if tags, _ := args[7].([]byte); !strings.Contains(string(tags), "checking_rate_limit") {
		t.Errorf("tags = %s", tags)
	}
	if args[9] != at {
		t.Errorf("occurred_at = %v", args[9])
	}
}
