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
	"errors"
	"fmt"
	"log/slog"

	"github.com/jearle/portfolio-contact/internal/models"
)

// Failover sends through primary and, if that fails, through fallback.
type Failover struct {
	primary  Sender
	fallback Sender
	logger   *slog.Logger
}

// NewFailover composes two senders behind the Sender interface.
func NewFailover(primary, fallback Sender, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Failover{primary: primary, fallback: fallback, logger: logger}
}

// Name reports both transports, primary first.
func (f *Failover) Name() string {
	return f.primary.Name() + "," + f.fallback.Name()
}

// Send implements Sender.
func (f *Failover) Send(ctx context.Context, msg *models.OutboundEmail) (string, error) {
	id, err := f.primary.Send(ctx, msg)
	if err == nil {
		return id, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	f.logger.WarnContext(ctx, "primary transport failed, using fallback",
		"primary", f.primary.Name(),
		"fallback", f.fallback.Name(),
		"error", err,
	)

	id, ferr := f.fallback.Send(ctx, msg)
	if ferr != nil {
		return "", errors.Join(
			fmt.Errorf("%s: %w", f.primary.Name(), err),
			fmt.Errorf("%s: %w", f.fallback.Name(), ferr),
		)
	}
	return id, nil
}
