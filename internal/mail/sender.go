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

// Package mail delivers contact notifications through an external email
// transport. Every transport implements Sender, so the retry and failover
// wrappers and the orchestrator never know which provider is active.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jearle/portfolio-contact/internal/models"
)

// Sender delivers one message and returns the provider's message ID.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *models.OutboundEmail) (string, error)
}

// Provider names a transport implementation.
type Provider string

const (
	ProviderResend Provider = "resend"
	ProviderGraph  Provider = "graph"
	ProviderQueue  Provider = "queue"
)

// DefaultTimeout bounds a single transport call.
const DefaultTimeout = 10 * time.Second

// FactoryConfig carries everything needed to build any transport. Only the
// sections for the selected providers need to be filled.
type FactoryConfig struct {
	Primary  Provider
	Fallback Provider // optional
	Timeout  time.Duration
	Retry    RetryPolicy

	Resend ResendConfig
	Graph  GraphConfig
	Queue  QueueConfig

	Redis    redis.Cmdable
	Logger   *slog.Logger
	Observer AttemptObserver
}

// New builds the delivery sender: the primary transport wrapped in retries
// and, when a fallback is configured, a failover onto the retried fallback.
func New(ctx context.Context, cfg FactoryConfig) (Sender, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	primary, err := newTransport(ctx, cfg.Primary, cfg)
	if err != nil {
		return nil, fmt.Errorf("primary transport: %w", err)
	}
	sender := Sender(NewRetrying(primary, cfg.Retry, cfg.Logger, cfg.Observer))

	if cfg.Fallback == "" {
		return sender, nil
	}
	if cfg.Fallback == cfg.Primary {
		return nil, fmt.Errorf("fallback provider %q is the same as the primary", cfg.Fallback)
	}

	fallback, err := newTransport(ctx, cfg.Fallback, cfg)
	if err != nil {
		return nil, fmt.Errorf("fallback transport: %w", err)
	}
	return NewFailover(sender, NewRetrying(fallback, cfg.Retry, cfg.Logger, cfg.Observer), cfg.Logger), nil
}

func newTransport(ctx context.Context, p Provider, cfg FactoryConfig) (Sender, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch p {
	case ProviderResend:
		c := cfg.Resend
		if c.Timeout <= 0 {
			c.Timeout = timeout
		}
		return NewResendSender(c)
	case ProviderGraph:
		c := cfg.Graph
		if c.Timeout <= 0 {
			c.Timeout = timeout
		}
		return NewGraphSender(ctx, c)
	case ProviderQueue:
		if cfg.Redis == nil {
			return nil, errors.New("queue provider requires a Redis client")
		}
		c := cfg.Queue
		if c.Timeout <= 0 {
			c.Timeout = timeout
		}
		return NewQueueSender(cfg.Redis, c, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unknown delivery provider %q", p)
	}
}
