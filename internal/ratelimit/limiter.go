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

// Package ratelimit enforces a per-source-address quota using a fixed-window
// counter. The counter lives behind the Store interface so a single instance
// can keep it in memory while a horizontally scaled deployment shares it in
// Redis.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultMax is the number of admissions per window.
	DefaultMax = 5

	// DefaultWindow is the length of one counting window.
	DefaultWindow = time.Hour
)

// Policy configures the limiter.
type Policy struct {
	Max    int
	Window time.Duration
}

// DefaultPolicy admits 5 requests per address per hour.
func DefaultPolicy() Policy {
	return Policy{Max: DefaultMax, Window: DefaultWindow}
}

// Entry is the state of one key's current window.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Store holds window counters. Increment must atomically start a new window
// (count=1, ResetAt=now+window) when none is active for key, or increment
// the active one, and return the resulting entry. Implementations must be
// safe for concurrent use.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Entry, error)
}

// Decision is the outcome of one admission check.
type Decision struct {
	Admitted          bool
	Limit             int
	Remaining         int
	ResetAt           time.Time
	RetryAfterSeconds int
}

// Limiter decides admission for source addresses.
type Limiter struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter over store. Non-positive policy values fall
// back to the defaults.
func NewLimiter(store Store, policy Policy, opts ...Option) *Limiter {
	if policy.Max <= 0 {
		policy.Max = DefaultMax
	}
	if policy.Window <= 0 {
		policy.Window = DefaultWindow
	}
	l := &Limiter{
		store:  store,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the effective policy.
func (l *Limiter) Policy() Policy { return l.policy }

// Check counts one request from sourceAddress and decides whether it is
// admitted. Each call consumes quota, so it must only be made once the
// request has passed every earlier stage.
func (l *Limiter) Check(ctx context.Context, sourceAddress string) (Decision, error) {
	now := l.now()

	entry, err := l.store.Increment(ctx, sourceAddress, l.policy.Window, now)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit increment: %w", err)
	}

	d := Decision{
		Limit:     l.policy.Max,
		Remaining: max(0, l.policy.Max-entry.Count),
		ResetAt:   entry.ResetAt,
	}

	if entry.Count <= l.policy.Max {
		d.Admitted = true
		return d, nil
	}

	d.RetryAfterSeconds = retryAfter(entry.ResetAt, now)
	return d, nil
}

// retryAfter returns ceil((resetAt-now) in seconds), at least 1.
func retryAfter(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
