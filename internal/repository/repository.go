package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blackroad/power-manager/internal/db"
)

// ErrNotFound marks lookups for ids that do not exist. Callers must
// propagate it rather than substitute a default entity.
var ErrNotFound = errors.New("not found")

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertDevice registers a device. Registering an existing id updates the
// name and thresholds in place, never duplicates.
func (r *Repository) UpsertDevice(ctx context.Context, d *db.Device) error {
	query := `
		INSERT INTO devices (id, name, shutdown_threshold, target_wh)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    shutdown_threshold = EXCLUDED.shutdown_threshold,
		    target_wh = EXCLUDED.target_wh
	`

	_, err := r.pool.Exec(ctx, query, d.ID, d.Name, d.ShutdownThreshold, d.TargetWh)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	return nil
}

// GetDevice fetches a device by id.
func (r *Repository) GetDevice(ctx context.Context, id string) (*db.Device, error) {
	query := `
		SELECT id, name, shutdown_threshold, target_wh
		FROM devices
		WHERE id = $1
	`

	var d db.Device
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Name,
		&d.ShutdownThreshold,
		&d.TargetWh,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("device %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}

	return &d, nil
}

// InsertMeter creates a meter attached to an existing device.
func (r *Repository) InsertMeter(ctx context.Context, m *db.Meter) error {
	query := `
		INSERT INTO power_meters (
			id, device_id, type, voltage, current_draw, capacity_wh,
			charge_pct, low_pct, critical_pct, full_pct, name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		m.ID,
		m.DeviceID,
		m.Type,
		m.Voltage,
		m.CurrentDraw,
		m.CapacityWh,
		m.ChargePct,
		m.Thresholds.LowPct,
		m.Thresholds.CriticalPct,
		m.Thresholds.FullPct,
		m.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meter: %w", err)
	}

	return nil
}

const meterColumns = `id, device_id, type, voltage, current_draw, capacity_wh,
		charge_pct, low_pct, critical_pct, full_pct, name`

func scanMeter(row pgx.Row) (*db.Meter, error) {
	var m db.Meter
	err := row.Scan(
		&m.ID,
		&m.DeviceID,
		&m.Type,
		&m.Voltage,
		&m.CurrentDraw,
		&m.CapacityWh,
		&m.ChargePct,
		&m.Thresholds.LowPct,
		&m.Thresholds.CriticalPct,
		&m.Thresholds.FullPct,
		&m.Name,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMeter fetches a meter by id.
func (r *Repository) GetMeter(ctx context.Context, id uuid.UUID) (*db.Meter, error) {
	query := `SELECT ` + meterColumns + ` FROM power_meters WHERE id = $1`

	m, err := scanMeter(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("meter %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query meter: %w", err)
	}

	return m, nil
}

// ListMetersByDevice fetches all meters of a device in insertion order.
func (r *Repository) ListMetersByDevice(ctx context.Context, deviceID string) ([]db.Meter, error) {
	query := `SELECT ` + meterColumns + ` FROM power_meters WHERE device_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meters: %w", err)
	}
	defer rows.Close()

	var meters []db.Meter
	for rows.Next() {
		m, err := scanMeter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meter: %w", err)
		}
		meters = append(meters, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return meters, nil
}

// ApplyReading locks the meter row, hands its current state to decide, and
// persists the returned reading, the meter projection update and the
// optional event as one transaction. The row lock serializes concurrent
// callers per meter; calls on different meters proceed in parallel.
func (r *Repository) ApplyReading(
	ctx context.Context,
	meterID uuid.UUID,
	decide func(m *db.Meter) (*db.Reading, *db.Event, error),
) (*db.Reading, *db.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + meterColumns + ` FROM power_meters WHERE id = $1 FOR UPDATE`

	meter, err := scanMeter(tx.QueryRow(ctx, query, meterID))
	if err == pgx.ErrNoRows {
		return nil, nil, fmt.Errorf("meter %q: %w", meterID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock meter: %w", err)
	}

	reading, event, err := decide(meter)
	if err != nil {
		return nil, nil, err
	}

	insertReading := `
		INSERT INTO power_readings (id, meter_id, voltage, current_draw, wattage, charge_pct, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, insertReading,
		reading.ID,
		reading.MeterID,
		reading.Voltage,
		reading.CurrentDraw,
		reading.Wattage,
		reading.ChargePct,
		reading.Timestamp,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert reading: %w", err)
	}

	updateMeter := `
		UPDATE power_meters
		SET voltage = $1, current_draw = $2, charge_pct = $3
		WHERE id = $4
	`
	_, err = tx.Exec(ctx, updateMeter, reading.Voltage, reading.CurrentDraw, reading.ChargePct, meterID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update meter projection: %w", err)
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return reading, event, nil
}

// execer covers both the pool and a transaction for event appends.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertEvent appends a manually triggered event.
func (r *Repository) InsertEvent(ctx context.Context, e *db.Event) error {
	return insertEvent(ctx, r.pool, e)
}

func insertEvent(ctx context.Context, exec execer, e *db.Event) error {
	query := `
		INSERT INTO power_events (id, device_id, type, value, timestamp, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := exec.Exec(ctx, query, e.ID, e.DeviceID, e.Type, e.Value, e.Timestamp, e.Note)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// ReadingsSince fetches a meter's readings with timestamp >= since, oldest
// first. An empty window is a legitimate empty result, not an error.
func (r *Repository) ReadingsSince(ctx context.Context, meterID uuid.UUID, since time.Time) ([]db.Reading, error) {
	query := `
		SELECT id, meter_id, voltage, current_draw, wattage, charge_pct, timestamp
		FROM power_readings
		WHERE meter_id = $1 AND timestamp >= $2
		ORDER BY timestamp
	`

	rows, err := r.pool.Query(ctx, query, meterID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []db.Reading
	for rows.Next() {
		var rd db.Reading
		err := rows.Scan(&rd.ID, &rd.MeterID, &rd.Voltage, &rd.CurrentDraw, &rd.Wattage, &rd.ChargePct, &rd.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

// EventsByDevice fetches a device's events newest first, up to limit.
func (r *Repository) EventsByDevice(ctx context.Context, deviceID string, limit int) ([]db.Event, error) {
	query := `
		SELECT id, device_id, type, value, timestamp, note
		FROM power_events
		WHERE device_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []db.Event
	for rows.Next() {
		var e db.Event
		err := rows.Scan(&e.ID, &e.DeviceID, &e.Type, &e.Value, &e.Timestamp, &e.Note)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}
