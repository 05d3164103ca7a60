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

package reporting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the reporter needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresReporter persists reports in the error_reports table.
type PostgresReporter struct {
	db DB
}

// NewPostgresReporter creates the reporter and ensures its table exists.
func NewPostgresReporter(ctx context.Context, db DB) (*PostgresReporter, error) {
	p := &PostgresReporter{db: db}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure error report schema: %w", err)
	}
	return p, nil
}

func (p *PostgresReporter) ensureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS error_reports (
			id              BIGSERIAL PRIMARY KEY,
			request_id      TEXT NOT NULL,
			source_address  TEXT DEFAULT '',
			kind            TEXT NOT NULL,
			status          INTEGER NOT NULL,
			stage           TEXT DEFAULT '',
			detail          TEXT DEFAULT '',
			error           TEXT DEFAULT '',
			tags            JSONB DEFAULT '{}'::jsonb,
			breadcrumbs     JSONB DEFAULT '[]'::jsonb,
			occurred_at     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_error_reports_occurred ON error_reports(occurred_at);
		CREATE INDEX IF NOT EXISTS idx_error_reports_request ON error_reports(request_id);
	`)
	return err
}

// Report implements Reporter.
func (p *PostgresReporter) Report(ctx context.Context, r Report) error {
	tags, err := json.Marshal(r.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	crumbs, err := json.Marshal(r.Breadcrumbs)
	if err != nil {
		return fmt.Errorf("marshal breadcrumbs: %w", err)
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO error_reports
			(request_id, source_address, kind, status, stage, detail, error, tags, breadcrumbs, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.RequestID, r.SourceAddress, r.Kind, r.Status, r.Stage, r.Detail, r.Error, tags, crumbs, r.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert error report: %w", err)
	}
	return nil
}

// ListRecent returns the newest reports, newest first.
func (p *PostgresReporter) ListRecent(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.Query(ctx, `
		SELECT request_id, source_address, kind, status, stage, detail, error,
		       tags, breadcrumbs, occurred_at
		FROM error_reports
		ORDER BY occurred_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

// collectReports scans multiple rows into a slice of Reports.
func collectReports(rows pgx.Rows) ([]Report, error) {
	var reports []Report
	for rows.Next() {
		var r Report
		var tags, crumbs []byte
		if err := rows.Scan(
			&r.RequestID, &r.SourceAddress, &r.Kind, &r.Status, &r.Stage,
			&r.Detail, &r.Error, &tags, &crumbs, &r.OccurredAt,
		); err != nil {
			return nil, err
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &r.Tags); err != nil {
				return nil, fmt.Errorf("decode tags: %w", err)
			}
		}
		if len(crumbs) > 0 {
			if err := json.Unmarshal(crumbs, &r.Breadcrumbs); err != nil {
				return nil, fmt.Errorf("decode breadcrumbs: %w", err)
			}
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
