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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jearle/portfolio-contact/internal/reporting"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("env: test\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("TURNSTILE_SECRET_KEY", "secret")
	t.Setenv("RESEND_API_KEY", "re_live_should_not_print")
	t.Setenv("CONTACT_EMAIL_TO", "owner@example.com")
	t.Setenv("CONTACT_EMAIL_FROM", "noreply@example.com")
	t.Setenv("DELIVERY_PROVIDER", "resend")
	t.Setenv("RATE_LIMIT_BACKEND", "memory")
}

// TestCheckConfig verifies the summary and that secrets are masked.
func TestCheckConfig(t *testing.T) {
	setValidEnv(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"check-config"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("check-config: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Configuration OK") {
		t.Errorf("output missing header: %s", got)
	}
	if !strings.Contains(got, "owner@example.com") {
		t.Errorf("output missing recipient: %s", got)
	}
	if strings.Contains(got, "re_live_should_not_print") {
		t.Error("secret printed in summary")
	}
}

// TestCheckConfig_Invalid verifies validation errors fail the command.
func TestCheckConfig_Invalid(t *testing.T) {
	setValidEnv(t)
	t.Setenv("TURNSTILE_SECRET_KEY", "")
	t.Setenv("CONTACT_EMAIL_TO", "not-an-address")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"check-config"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"TURNSTILE_SECRET_KEY", "CONTACT_EMAIL_TO"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

// TestReports_RequiresDatabase verifies the command explains the missing store.
func TestReports_RequiresDatabase(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DATABASE_URL", "")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"reports"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("err = %v, want DATABASE_URL error", err)
	}
}

// TestPrintReports verifies the table rendering.
func TestPrintReports(t *testing.T) {
	var out bytes.Buffer
	printReports(&out, nil)
	if !strings.Contains(out.String(), "No error reports") {
		t.Errorf("empty output = %q", out.String())
	}

	out.Reset()
	printReports(&out, []reporting.Report{{
		RequestID:  "0b6f3c1e-7d0a-4a55-9d4c-2a3c7e1b9f10",
		Kind:       "DeliveryFailed",
		Stage:      "delivering",
		Error:      strings.Repeat("x", 200),
		Tags:       map[string]string{"provider": "resend"},
		OccurredAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}})
	got := out.String()
	for _, want := range []string{"DeliveryFailed", "delivering", "resend", "2026-10-01T12:00:00Z", "…"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
