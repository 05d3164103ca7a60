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

package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jearle/portfolio-contact/internal/config"
	"github.com/jearle/portfolio-contact/internal/reporting"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Turnstile.SecretKey = "secret"
	cfg.Email.To = "owner@example.com"
	cfg.Email.From = "noreply@example.com"
	cfg.Email.ResendAPIKey = "re_test"
	return &cfg
}

func connect(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := Connect(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

// TestConnect_NoStores verifies the in-memory setup needs no connections.
func TestConnect_NoStores(t *testing.T) {
	a := connect(t, testConfig())

	if a.Redis != nil || a.DB != nil || a.Reports != nil {
		t.Error("no stores should be opened without URLs")
	}
	if len(a.HealthChecks()) != 0 {
		t.Error("no health checks expected")
	}
	if _, ok := a.Reporter().(*reporting.LogReporter); !ok {
		t.Errorf("Reporter = %T, want *reporting.LogReporter", a.Reporter())
	}
}

// TestProcessor_Builds verifies the full pipeline wires from config.
func TestProcessor_Builds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := connect(t, testConfig())
	p, err := a.Processor(ctx)
	if err != nil {
		t.Fatalf("Processor: %v", err)
	}
	if _, err := a.Router(p); err != nil {
		t.Fatalf("Router: %v", err)
	}
}

// TestLimiter_RedisWithoutConnection verifies the backend needs a client.
func TestLimiter_RedisWithoutConnection(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Backend = config.BackendRedis

	a := connect(t, cfg)
	if _, err := a.Limiter(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// TestSender_QueueWithoutRedis verifies the queue provider needs a client.
func TestSender_QueueWithoutRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Email.Provider = config.ProviderQueue

	a := connect(t, cfg)
	if _, err := a.Sender(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// TestAddresses verifies the configured sender name is carried.
func TestAddresses(t *testing.T) {
	a := connect(t, testConfig())
	from, to := a.Addresses()
	if from.Address != "noreply@example.com" || from.Name != "Portfolio Contact" {
		t.Errorf("from = %+v", from)
	}
	if to.Address != "owner@example.com" {
		t.Errorf("to = %+v", to)
	}
}
