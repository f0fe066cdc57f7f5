// Package postgres persists activity records. The scheduling core never
// talks to it directly; the HTTP adapter and the alert evaluator read
// activities here and hand them to internal/recur.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) Ready(ctx context.Context) error {
	var one int
	return db.Pool.QueryRow(ctx, "select 1").Scan(&one)
}

const schema = `
CREATE TABLE IF NOT EXISTS activities (
	id                   UUID PRIMARY KEY,
	workspace_id         TEXT NOT NULL,
	title                TEXT NOT NULL,
	agenda               TEXT NOT NULL DEFAULT '',
	all_day              BOOLEAN NOT NULL DEFAULT FALSE,
	start_at             TIMESTAMPTZ NOT NULL,
	end_at               TIMESTAMPTZ NOT NULL,
	recurrence_pattern   TEXT,
	recurrence_interval  INT,
	weekly_day           TEXT,
	monthly_day_of_month INT,
	recurrence_end_date  TIMESTAMPTZ,
	status_name          TEXT NOT NULL DEFAULT 'pending',
	alert_lead_time      INT,
	alert_time_unit      TEXT,
	attendee_ids         TEXT[] NOT NULL DEFAULT '{}',
	is_deleted           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_activities_workspace
	ON activities (workspace_id) WHERE NOT is_deleted;
CREATE INDEX IF NOT EXISTS idx_activities_alert
	ON activities (recurrence_end_date, start_at) WHERE NOT is_deleted;
`

// EnsureSchema creates the activities table and indexes if they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
