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

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// scriptedRedis emulates the increment script against a fake clock, the way
// the Lua runs server-side.
type scriptedRedis struct {
	mu      sync.Mutex
	clock   *fakeClock
	counts  map[string]int64
	expires map[string]time.Time
	keys    []string
	fail    error
}

func newScriptedRedis(clock *fakeClock) *scriptedRedis {
	return &scriptedRedis{clock: clock, counts: map[string]int64{}, expires: map[string]time.Time{}}
}

func (s *scriptedRedis) run(ctx context.Context, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if s.fail != nil {
		cmd.SetErr(s.fail)
		return cmd
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := keys[0]
	s.keys = append(s.keys, key)
	windowMS := args[0].(int64)
	now := s.clock.Now()

	if exp, ok := s.expires[key]; ok && !now.Before(exp) {
		delete(s.counts, key)
		delete(s.expires, key)
	}
	s.counts[key]++
	if s.counts[key] == 1 {
		s.expires[key] = now.Add(time.Duration(windowMS) * time.Millisecond)
	}
	ttl := s.expires[key].Sub(now).Milliseconds()

	cmd.SetVal([]interface{}{s.counts[key], ttl})
	return cmd
}

func (s *scriptedRedis) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(ctx, keys, args...)
}

func (s *scriptedRedis) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(ctx, keys, args...)
}

func (s *scriptedRedis) EvalRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(ctx, keys, args...)
}

func (s *scriptedRedis) EvalShaRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(ctx, keys, args...)
}

func (s *scriptedRedis) ScriptExists(ctx context.Context, _ ...string) *redis.BoolSliceCmd {
	cmd := redis.NewBoolSliceCmd(ctx)
	cmd.SetVal([]bool{true})
	return cmd
}

func (s *scriptedRedis) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("sha")
	return cmd
}

// TestRedisStore_Window verifies the limiter over the Redis store.
func TestRedisStore_Window(t *testing.T) {
	clock := newFakeClock()
	rdb := newScriptedRedis(clock)
	l := NewLimiter(NewRedisStore(rdb), DefaultPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	for i := 1; i <= DefaultMax; i++ {
		d, err := l.Check(ctx, "203.0.113.7")
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !d.Admitted {
			t.Fatalf("check %d should be admitted", i)
		}
		clock.Advance(time.Minute)
	}

	d, err := l.Check(ctx, "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}
	if d.Admitted {
		t.Fatal("sixth request should be rejected")
	}
	if want := 55 * 60; d.RetryAfterSeconds != want {
		t.Errorf("RetryAfterSeconds = %d, want %d", d.RetryAfterSeconds, want)
	}

	clock.Advance(time.Hour)
	d, err = l.Check(ctx, "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Admitted || d.Remaining != DefaultMax-1 {
		t.Errorf("after window: %+v", d)
	}

	if got := rdb.keys[0]; got != keyPrefix+"203.0.113.7" {
		t.Errorf("key = %q", got)
	}
}

// TestRedisStore_Error verifies Redis failures surface as errors.
func TestRedisStore_Error(t *testing.T) {
	rdb := newScriptedRedis(newFakeClock())
	rdb.fail = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

	_, err := NewRedisStore(rdb).Increment(context.Background(), "a", time.Hour, time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
}
