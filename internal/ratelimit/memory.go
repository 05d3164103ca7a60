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
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps counters in a process-local map. Expired windows are
// reset lazily on the next access for the same key and purged by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Increment implements Store. The read-modify-write happens under a single
// lock so concurrent requests for one key can never both observe the same
// count.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !now.Before(e.ResetAt) {
		e = Entry{Count: 1, ResetAt: now.Add(window)}
	} else {
		e.Count++
	}
	s.entries[key] = e
	return e, nil
}

// Get returns the active entry for key, if any.
func (s *MemoryStore) Get(key string, now time.Time) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !now.Before(e.ResetAt) {
		return Entry{}, false
	}
	return e, true
}

// Len returns the number of tracked keys, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep deletes every entry whose window has elapsed and returns how many
// were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.ResetAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled or Stop is
// called. observe, if non-nil, receives the number of live entries after
// each sweep.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger, observe func(entries int)) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case now := <-ticker.C:
				removed := s.Sweep(now)
				remaining := s.Len()
				if removed > 0 {
					logger.Debug("rate limit sweep",
						"removed", removed,
						"remaining", remaining,
					)
				}
				if observe != nil {
					observe(remaining)
				}
			}
		}
	}()

	logger.Info("rate limit sweeper started", "interval", interval)
}

// Stop shuts down the sweeper.
func (s *MemoryStore) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
