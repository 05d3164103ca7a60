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
	"fmt"
	"log/slog"

	"github.com/jearle/portfolio-contact/internal/models"
)

// Channel is the delivery stage of the pipeline. It turns a Sender result
// into a DeliveryOutcome.
type Channel struct {
	sender Sender
	logger *slog.Logger
}

// NewChannel creates a delivery channel over sender, which is usually the
// result of New.
func NewChannel(sender Sender, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{sender: sender, logger: logger}
}

// Provider names the configured transport chain.
func (c *Channel) Provider() string { return c.sender.Name() }

// Deliver sends msg. On failure the outcome's FailureReason holds the
// transport error and the same error is returned wrapped.
func (c *Channel) Deliver(ctx context.Context, msg *models.OutboundEmail) (models.DeliveryOutcome, error) {
	tracker := &attemptTracker{}
	id, err := c.sender.Send(withTracker(ctx, tracker), msg)

	outcome := models.DeliveryOutcome{
		Provider: tracker.provider,
		Attempts: tracker.attempts,
	}
	if outcome.Provider == "" {
		outcome.Provider = c.sender.Name()
	}
	if outcome.Attempts == 0 {
		outcome.Attempts = 1
	}

	if err != nil {
		outcome.FailureReason = err.Error()
		return outcome, fmt.Errorf("deliver via %s after %d attempt(s): %w", outcome.Provider, outcome.Attempts, err)
	}

	outcome.Delivered = true
	outcome.ProviderMessageID = id
	c.logger.DebugContext(ctx, "message delivered",
		"provider", outcome.Provider,
		"provider_message_id", id,
		"attempts", outcome.Attempts,
	)
	return outcome, nil
}
