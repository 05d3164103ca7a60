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

// Portfolio Contact Service
//
// Entry point for the contact pipeline. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Refuses to start on any configuration problem
//  3. Connects to Redis and PostgreSQL when configured
//  4. Builds the verifier, rate limiter, delivery chain and error reporter
//  5. Serves POST /api/contact, /health and /metrics
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jearle/portfolio-contact/internal/app"
	"github.com/jearle/portfolio-contact/internal/config"
	"github.com/jearle/portfolio-contact/internal/logging"
	"github.com/jearle/portfolio-contact/internal/server"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{}).Error("failed to load configuration", logging.KeyError, err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Format: logging.FormatForEnvironment(cfg.Env),
		Debug:  cfg.LogDebug,
	})
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", logging.KeyError, err)
		os.Exit(1)
	}

	logger.Info("starting portfolio contact service",
		"env", cfg.Env,
		"delivery_provider", cfg.Email.Provider,
		"fallback_provider", cfg.Email.FallbackProvider,
		"rate_limit_max", cfg.RateLimit.Max,
		"rate_limit_window", cfg.RateLimit.Window,
		"rate_limit_backend", cfg.RateLimit.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- Connect backing stores ---
	a, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect backing stores", logging.KeyError, err)
		os.Exit(1)
	}
	defer a.Close()

	// --- Pipeline ---
	processor, err := a.Processor(ctx)
	if err != nil {
		logger.Error("failed to build contact pipeline", logging.KeyError, err)
		os.Exit(1)
	}

	router, err := a.Router(processor)
	if err != nil {
		logger.Error("failed to build router", logging.KeyError, err)
		os.Exit(1)
	}

	// --- HTTP Server ---
	ready, done, err := server.Serve(ctx, cfg.Port, router, logger)
	if err != nil {
		logger.Error("failed to start http server", logging.KeyError, err)
		os.Exit(1)
	}
	<-ready
	logger.Info("contact service ready", "port", cfg.Port)

	// --- Graceful Shutdown ---
	<-ctx.Done()
	logger.Info("received shutdown signal")
	<-done

	logger.Info("contact service stopped")
}
