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

// Package app wires configuration into running components. Both the HTTP
// server and the operator CLI build their collaborators through it so the
// two never drift apart.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jearle/portfolio-contact/internal/config"
	"github.com/jearle/portfolio-contact/internal/contact"
	"github.com/jearle/portfolio-contact/internal/logging"
	"github.com/jearle/portfolio-contact/internal/mail"
	"github.com/jearle/portfolio-contact/internal/metrics"
	"github.com/jearle/portfolio-contact/internal/models"
	"github.com/jearle/portfolio-contact/internal/ratelimit"
	"github.com/jearle/portfolio-contact/internal/reporting"
	"github.com/jearle/portfolio-contact/internal/server"
	"github.com/jearle/portfolio-contact/internal/turnstile"
)

// App holds the process-wide connections and shared components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Redis is nil unless a component needs it.
	Redis *redis.Client
	// DB is nil unless DATABASE_URL is set.
	DB *pgxpool.Pool
	// Reports is nil unless DB is set.
	Reports *reporting.PostgresReporter

	memStore *ratelimit.MemoryStore
}

// Connect opens the backing stores the configuration asks for and checks
// that they are reachable.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opt)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		logger.Info("connected to Redis")
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create Postgres pool: %w", err)
		}
		a.DB = pool
		if err := pool.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		logger.Info("connected to PostgreSQL")

		a.Reports, err = reporting.NewPostgresReporter(ctx, pool)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialise error report store: %w", err)
		}
	}

	return a, nil
}

// Close releases every connection and stops background work.
func (a *App) Close() {
	if a.memStore != nil {
		a.memStore.Stop()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Addresses returns the notification sender and recipient.
func (a *App) Addresses() (from, to models.EmailAddress) {
	e := a.Config.Email
	return models.EmailAddress{Address: e.From, Name: e.FromName}, models.EmailAddress{Address: e.To}
}

// Sender builds the configured delivery chain.
func (a *App) Sender(ctx context.Context) (mail.Sender, error) {
	e := a.Config.Email
	fc := mail.FactoryConfig{
		Primary:  mail.Provider(e.Provider),
		Fallback: mail.Provider(e.FallbackProvider),
		Timeout:  e.Timeout,
		Retry:    mail.RetryPolicy{MaxAttempts: e.MaxAttempts, BaseDelay: e.BaseDelay},
		Resend: mail.ResendConfig{
			APIKey:  e.ResendAPIKey,
			BaseURL: e.ResendBaseURL,
		},
		Graph: mail.GraphConfig{
			TenantID:     e.Graph.TenantID,
			ClientID:     e.Graph.ClientID,
			ClientSecret: e.Graph.ClientSecret,
			SenderUser:   e.Graph.SenderUser,
		},
		Queue:    mail.QueueConfig{Name: e.QueueName},
		Logger:   logging.Component(a.Logger, "mail"),
		Observer: a.Metrics,
	}
	if a.Redis != nil {
		fc.Redis = a.Redis
	}
	return mail.New(ctx, fc)
}

// Limiter builds the rate limiter over the configured backend. The memory
// backend starts its sweeper, which stops when ctx is cancelled or on Close.
func (a *App) Limiter(ctx context.Context) (*ratelimit.Limiter, error) {
	rl := a.Config.RateLimit
	policy := ratelimit.Policy{Max: rl.Max, Window: rl.Window}

	switch rl.Backend {
	case config.BackendRedis:
		if a.Redis == nil {
			return nil, errors.New("redis rate limit backend selected without a Redis connection")
		}
		return ratelimit.NewLimiter(ratelimit.NewRedisStore(a.Redis), policy), nil
	default:
		store := ratelimit.NewMemoryStore()
		store.StartSweeper(ctx, rl.SweepInterval, logging.Component(a.Logger, "ratelimit"), a.Metrics.SetRateLimitEntries)
		a.memStore = store
		return ratelimit.NewLimiter(store, policy), nil
	}
}

// Reporter returns the error-report sink: the log always, plus Postgres
// when a database is configured.
func (a *App) Reporter() reporting.Reporter {
	logReporter := reporting.NewLogReporter(a.Logger)
	if a.Reports == nil {
		return logReporter
	}
	return reporting.Fanout{logReporter, a.Reports}
}

// Processor builds the request orchestrator with every collaborator.
func (a *App) Processor(ctx context.Context) (*contact.Processor, error) {
	verifier, err := turnstile.NewVerifier(turnstile.Config{
		SecretKey: a.Config.Turnstile.SecretKey,
		VerifyURL: a.Config.Turnstile.VerifyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("anti-spam verifier: %w", err)
	}

	limiter, err := a.Limiter(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	sender, err := a.Sender(ctx)
	if err != nil {
		return nil, fmt.Errorf("delivery channel: %w", err)
	}

	from, to := a.Addresses()
	return contact.NewProcessor(contact.Config{
		Verifier:       verifier,
		Limiter:        limiter,
		Deliverer:      mail.NewChannel(sender, logging.Component(a.Logger, "mail")),
		Reporter:       a.Reporter(),
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		From:           from,
		To:             to,
		SubjectPrefix:  a.Config.Email.SubjectPrefix,
		RequestTimeout: a.Config.RequestTimeout,
	})
}

// HealthChecks returns a check per connected backing store.
func (a *App) HealthChecks() map[string]server.HealthCheck {
	checks := map[string]server.HealthCheck{}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	if a.DB != nil {
		checks["postgres"] = a.DB.Ping
	}
	return checks
}

// Router builds the HTTP handler around p.
func (a *App) Router(p server.Pipeline) (http.Handler, error) {
	return server.NewRouter(server.Options{
		Pipeline:   p,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
		TypeBase:   a.Config.ProblemTypeBase,
		TrustProxy: a.Config.TrustProxy,
		Checks:     a.HealthChecks(),
	})
}
