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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jearle/portfolio-contact/internal/app"
	"github.com/jearle/portfolio-contact/internal/mail"
	"github.com/jearle/portfolio-contact/internal/models"
)

func sendTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send-test",
		Short: "Send a test notification through the configured delivery channel",
		Long: `Builds the same delivery chain as the server (retries and fallback
included) and sends one notification to the configured recipient. The
anti-spam check and rate limit are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			body, _ := cmd.Flags().GetString("message")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := newLogger(cmd)

			a, err := app.Connect(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			sender, err := a.Sender(ctx)
			if err != nil {
				return fmt.Errorf("build delivery channel: %w", err)
			}

			from, to := a.Addresses()
			msg, err := mail.BuildNotification(models.InboundMessage{
				Name:  name,
				Email: email,
				Body:  body,
			}, from, to, cfg.Email.SubjectPrefix)
			if err != nil {
				return err
			}

			outcome, err := mail.NewChannel(sender, logger).Deliver(ctx, msg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Delivered via %s after %d attempt(s), message id %s\n",
				outcome.Provider, outcome.Attempts, valueOrDefault(outcome.ProviderMessageID, "(none)"))
			return nil
		},
	}

	cmd.Flags().String("name", "contactctl", "Submitter name on the test message")
	cmd.Flags().String("email", "noreply@example.com", "Submitter address used as reply-to")
	cmd.Flags().String("message", "This is a test message from contactctl.", "Message body")
	return cmd
}
