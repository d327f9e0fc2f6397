package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Meters carry their own classification thresholds so per-device hardware
// profiles can override the defaults. Readings and events are append-only;
// the meter row is the mutable projection of the latest reading.
const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	shutdown_threshold DOUBLE PRECISION NOT NULL DEFAULT 3.0,
	target_wh DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS power_meters (
	id UUID PRIMARY KEY,
	device_id TEXT NOT NULL REFERENCES devices(id),
	type TEXT NOT NULL,
	voltage DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_draw DOUBLE PRECISION NOT NULL DEFAULT 0,
	capacity_wh DOUBLE PRECISION NOT NULL DEFAULT 0,
	charge_pct DOUBLE PRECISION,
	low_pct DOUBLE PRECISION NOT NULL DEFAULT 20.0,
	critical_pct DOUBLE PRECISION NOT NULL DEFAULT 5.0,
	full_pct DOUBLE PRECISION NOT NULL DEFAULT 95.0,
	name TEXT
);

CREATE TABLE IF NOT EXISTS power_readings (
	id UUID PRIMARY KEY,
	meter_id UUID NOT NULL REFERENCES power_meters(id),
	voltage DOUBLE PRECISION NOT NULL,
	current_draw DOUBLE PRECISION NOT NULL,
	wattage DOUBLE PRECISION NOT NULL,
	charge_pct DOUBLE PRECISION,
	timestamp TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS power_events (
	id UUID PRIMARY KEY,
	device_id TEXT NOT NULL REFERENCES devices(id),
	type TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL DEFAULT 0,
	timestamp TIMESTAMPTZ NOT NULL,
	note TEXT
);

CREATE INDEX IF NOT EXISTS idx_readings_meter ON power_readings (meter_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_device ON power_events (device_id, timestamp DESC);
`

// Bootstrap creates the schema if it does not exist yet. It is idempotent.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}
	return nil
}
