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

// Portfolio Contact Service: Operator CLI
//
// contactctl inspects and exercises a deployment using the same
// configuration as the server.
//
// Usage:
//
//	contactctl check-config
//	contactctl send-test [--name "Operator"] [--email ops@example.com]
//	contactctl reports [--limit 20] [--json]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jearle/portfolio-contact/internal/config"
	"github.com/jearle/portfolio-contact/internal/logging"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "contactctl",
		Short:         "Operate the portfolio contact service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(checkConfigCmd())
	rootCmd.AddCommand(sendTestCmd())
	rootCmd.AddCommand(reportsCmd())
	return rootCmd
}

// loadConfig loads and validates the service configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// newLogger writes text logs to stderr so command output stays clean.
func newLogger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return logging.New(logging.Options{
		Format: logging.FormatText,
		Debug:  debug,
		Writer: cmd.ErrOrStderr(),
	})
}

func checkConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration OK")
	fmt.Fprintf(w, "  Environment:     %s\n", cfg.Env)
	fmt.Fprintf(w, "  Port:            %d\n", cfg.Port)
	fmt.Fprintf(w, "  Trust proxy:     %t\n", cfg.TrustProxy)
	fmt.Fprintf(w, "  Request timeout: %s\n", cfg.RequestTimeout)

	fmt.Fprintln(w, "\nDelivery:")
	fmt.Fprintf(w, "  Provider:        %s\n", cfg.Email.Provider)
	fmt.Fprintf(w, "  Fallback:        %s\n", valueOrDefault(cfg.Email.FallbackProvider, "none"))
	fmt.Fprintf(w, "  From:            %s\n", cfg.Email.From)
	fmt.Fprintf(w, "  To:              %s\n", cfg.Email.To)
	fmt.Fprintf(w, "  Attempts:        %d (base delay %s)\n", cfg.Email.MaxAttempts, cfg.Email.BaseDelay)
	fmt.Fprintf(w, "  Resend key:      %s\n", keyStatus(cfg.Email.ResendAPIKey))

	fmt.Fprintln(w, "\nAnti-spam:")
	fmt.Fprintf(w, "  Secret:          %s\n", keyStatus(cfg.Turnstile.SecretKey))

	fmt.Fprintln(w, "\nRate limit:")
	fmt.Fprintf(w, "  Quota:           %d per %s\n", cfg.RateLimit.Max, cfg.RateLimit.Window)
	fmt.Fprintf(w, "  Backend:         %s\n", cfg.RateLimit.Backend)

	fmt.Fprintln(w, "\nStores:")
	fmt.Fprintf(w, "  Redis:           %s\n", keyStatus(cfg.RedisURL))
	fmt.Fprintf(w, "  PostgreSQL:      %s\n", keyStatus(cfg.DatabaseURL))
}

func valueOrDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func keyStatus(v string) string {
	if v == "" {
		return "not configured"
	}
	return "configured"
}
