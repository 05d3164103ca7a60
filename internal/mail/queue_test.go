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

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/jearle/portfolio-contact/internal/models"
)

// listRedis records LPUSH calls. Every other Cmdable method is unused and
// panics through the nil embedded interface.
type listRedis struct {
	redis.Cmdable
	pushed map[string][][]byte
	err    error
}

func (l *listRedis) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if l.err != nil {
		cmd.SetErr(l.err)
		return cmd
	}
	if l.pushed == nil {
		l.pushed = map[string][][]byte{}
	}
	for _, v := range values {
		l.pushed[key] = append(l.pushed[key], v.([]byte))
	}
	cmd.SetVal(int64(len(l.pushed[key])))
	return cmd
}

// TestQueueSender_Send verifies the job envelope pushed onto the list.
func TestQueueSender_Send(t *testing.T) {
	rdb := &listRedis{}
	q := NewQueueSender(rdb, QueueConfig{}, nil)

	msg := &models.OutboundEmail{
		To:      []models.EmailAddress{{Address: "owner@example.com"}},
		From:    models.EmailAddress{Address: "noreply@example.com"},
		Subject: "New message from John",
		Text:    "hello",
	}
	id, err := q.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	jobs := rdb.pushed[DefaultQueueName]
	if len(jobs) != 1 {
		t.Fatalf("pushed %d jobs, want 1", len(jobs))
	}

	var job mailJob
	if err := json.Unmarshal(jobs[0], &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID != id {
		t.Errorf("job ID = %q, want %q", job.ID, id)
	}
	if job.Email.Subject != msg.Subject {
		t.Errorf("subject = %q", job.Email.Subject)
	}
	if job.QueuedAt.IsZero() {
		t.Error("queued_at not set")
	}
}

// TestQueueSender_RedisError verifies push failures are retryable errors.
func TestQueueSender_RedisError(t *testing.T) {
	rdb := &listRedis{err: errors.New("connection refused")}
	q := NewQueueSender(rdb, QueueConfig{Name: "custom"}, nil)

	_, err := q.Send(context.Background(), &models.OutboundEmail{})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsPermanent(err) {
		t.Error("redis errors should be retried")
	}
}

// TestNew_QueueRequiresRedis verifies the factory refuses a queue without Redis.
func TestNew_QueueRequiresRedis(t *testing.T) {
	if _, err := New(context.Background(), FactoryConfig{Primary: ProviderQueue}); err == nil {
		t.Fatal("expected error")
	}
}

// TestNew_QueueWithFallbackSame verifies fallback must differ from primary.
func TestNew_QueueWithFallbackSame(t *testing.T) {
	_, err := New(context.Background(), FactoryConfig{
		Primary:  ProviderQueue,
		Fallback: ProviderQueue,
		Redis:    &listRedis{},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
