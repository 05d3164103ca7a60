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
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jearle/portfolio-contact/internal/models"
)

// DefaultQueueName is the Redis list mail jobs are pushed onto.
const DefaultQueueName = "contact:mail"

// QueueConfig configures the Redis queue transport.
type QueueConfig struct {
	Name    string
	Timeout time.Duration
}

// QueueSender hands messages to an out-of-process mail worker by pushing
// them onto a Redis list. Delivery is complete once the job is queued.
type QueueSender struct {
	rdb       redis.Cmdable
	queueName string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewQueueSender creates a Redis queue transport.
func NewQueueSender(rdb redis.Cmdable, cfg QueueConfig, logger *slog.Logger) *QueueSender {
	if cfg.Name == "" {
		cfg.Name = DefaultQueueName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueSender{
		rdb:       rdb,
		queueName: cfg.Name,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Name implements Sender.
func (q *QueueSender) Name() string { return string(ProviderQueue) }

// mailJob is the JSON document consumed by the mail worker.
type mailJob struct {
	ID       string                `json:"id"`
	QueuedAt time.Time             `json:"queued_at"`
	Email    *models.OutboundEmail `json:"email"`
}

// Send implements Sender. The job ID doubles as the provider message ID.
func (q *QueueSender) Send(ctx context.Context, msg *models.OutboundEmail) (string, error) {
	job := mailJob{
		ID:       uuid.New().String(),
		QueuedAt: time.Now().UTC(),
		Email:    msg,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", Permanent(fmt.Errorf("marshal mail job: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	// Workers BRPOP from the other end, so LPUSH keeps FIFO order.
	if err := q.rdb.LPush(ctx, q.queueName, data).Err(); err != nil {
		return "", fmt.Errorf("redis LPUSH: %w", err)
	}

	q.logger.DebugContext(ctx, "queued mail job",
		"job_id", job.ID,
		"queue", q.queueName,
	)
	return job.ID, nil
}
