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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jearle/portfolio-contact/internal/app"
	"github.com/jearle/portfolio-contact/internal/reporting"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List recent error reports from PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not configured; error reports are only written to the log")
			}

			ctx := cmd.Context()
			a, err := app.Connect(ctx, cfg, newLogger(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := a.Reports.ListRecent(ctx, limit)
			if err != nil {
				return fmt.Errorf("list error reports: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			printReports(cmd.OutOrStdout(), reports)
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum reports to show")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func printReports(w io.Writer, reports []reporting.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No error reports.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OCCURRED\tREQUEST\tKIND\tSTAGE\tPROVIDER\tERROR")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.OccurredAt.Format(time.RFC3339),
			r.RequestID,
			r.Kind,
			r.Stage,
			valueOrDefault(r.Tags["provider"], "-"),
			truncate(r.Error, 80),
		)
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
