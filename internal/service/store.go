package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blackroad/power-manager/internal/db"
	"github.com/blackroad/power-manager/internal/mq"
)

// Store is the storage collaborator contract the engine runs against.
// *repository.Repository implements it; tests use an in-memory fake.
//
// ApplyReading must lock the meter, hand its current row to decide, and
// persist the returned reading, the projection update and the optional
// event as a single unit keyed by meter id. decide must be side-effect
// free so the store may retry it.
type Store interface {
	UpsertDevice(ctx context.Context, d *db.Device) error
	GetDevice(ctx context.Context, id string) (*db.Device, error)
	InsertMeter(ctx context.Context, m *db.Meter) error
	GetMeter(ctx context.Context, id uuid.UUID) (*db.Meter, error)
	ListMetersByDevice(ctx context.Context, deviceID string) ([]db.Meter, error)
	ApplyReading(ctx context.Context, meterID uuid.UUID, decide func(m *db.Meter) (*db.Reading, *db.Event, error)) (*db.Reading, *db.Event, error)
	InsertEvent(ctx context.Context, e *db.Event) error
	ReadingsSince(ctx context.Context, meterID uuid.UUID, since time.Time) ([]db.Reading, error)
	EventsByDevice(ctx context.Context, deviceID string, limit int) ([]db.Event, error)
}

// EventNotifier fans out power events after they are durably stored.
// Notification failures are logged, never propagated; the stored event is
// the source of truth.
type EventNotifier interface {
	PublishPowerEvent(ctx context.Context, event mq.PowerEventMessage, routingKey string) error
}
