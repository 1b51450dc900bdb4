// Package postgres persists wards and incident reports. The store is a
// convenience, not a dependency: when the database is unreachable the read
// paths return empty results and the service keeps serving from memory.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens a pooled connection and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables the service writes to if they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS wards (
	id                        TEXT PRIMARY KEY,
	name                      TEXT NOT NULL,
	zone                      TEXT NOT NULL DEFAULT '',
	latitude                  DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude                 DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_rainfall          DOUBLE PRECISION NOT NULL DEFAULT 0,
	forecast_rainfall_3h      DOUBLE PRECISION NOT NULL DEFAULT 0,
	failure_threshold         DOUBLE PRECISION NOT NULL DEFAULT 60,
	risk_level                TEXT NOT NULL DEFAULT 'safe',
	preparedness_score        INTEGER NOT NULL DEFAULT 100,
	drainage_stress_index     DOUBLE PRECISION NOT NULL DEFAULT 0,
	pothole_density           DOUBLE PRECISION NOT NULL DEFAULT 0,
	drain_density             DOUBLE PRECISION NOT NULL DEFAULT 0,
	historical_flood_frequency DOUBLE PRECISION NOT NULL DEFAULT 0,
	explanation               TEXT NOT NULL DEFAULT '',
	data_source               TEXT NOT NULL DEFAULT '',
	last_updated              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_wards_zone ON wards (zone);
CREATE INDEX IF NOT EXISTS idx_wards_risk_level ON wards (risk_level);

CREATE TABLE IF NOT EXISTS incidents (
	id               TEXT PRIMARY KEY,
	type             TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	severity         INTEGER NOT NULL DEFAULT 1,
	ward_id          TEXT NOT NULL,
	ward_name        TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	latitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
	accuracy         DOUBLE PRECISION NOT NULL DEFAULT 0,
	validation_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	image_ref        TEXT NOT NULL DEFAULT '',
	simulated        BOOLEAN NOT NULL DEFAULT false,
	occurred_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_incidents_occurred_at ON incidents (occurred_at DESC);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
