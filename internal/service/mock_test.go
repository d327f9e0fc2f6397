package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackroad/power-manager/internal/config"
	"github.com/blackroad/power-manager/internal/db"
	"github.com/blackroad/power-manager/internal/mq"
	"github.com/blackroad/power-manager/internal/repository"
)

// fakeStore is an in-memory Store for engine tests. It mirrors the
// repository's semantics: NotFound sentinel on unknown ids, atomic
// reading/projection/event application per meter.
type fakeStore struct {
	mu         sync.Mutex
	devices    map[string]*db.Device
	meters     map[uuid.UUID]*db.Meter
	meterOrder []uuid.UUID
	readings   map[uuid.UUID][]db.Reading
	events     map[string][]db.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices:  make(map[string]*db.Device),
		meters:   make(map[uuid.UUID]*db.Meter),
		readings: make(map[uuid.UUID][]db.Reading),
		events:   make(map[string][]db.Event),
	}
}

func (f *fakeStore) UpsertDevice(_ context.Context, d *db.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *d
	f.devices[d.ID] = &copied
	return nil
}

func (f *fakeStore) GetDevice(_ context.Context, id string) (*db.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %q: %w", id, repository.ErrNotFound)
	}
	copied := *d
	return &copied, nil
}

func (f *fakeStore) InsertMeter(_ context.Context, m *db.Meter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *m
	f.meters[m.ID] = &copied
	f.meterOrder = append(f.meterOrder, m.ID)
	return nil
}

func (f *fakeStore) GetMeter(_ context.Context, id uuid.UUID) (*db.Meter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meters[id]
	if !ok {
		return nil, fmt.Errorf("meter %q: %w", id, repository.ErrNotFound)
	}
	copied := *m
	return &copied, nil
}

func (f *fakeStore) ListMetersByDevice(_ context.Context, deviceID string) ([]db.Meter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var meters []db.Meter
	for _, id := range f.meterOrder {
		if m := f.meters[id]; m.DeviceID == deviceID {
			meters = append(meters, *m)
		}
	}
	return meters, nil
}

func (f *fakeStore) ApplyReading(
	_ context.Context,
	meterID uuid.UUID,
	decide func(m *db.Meter) (*db.Reading, *db.Event, error),
) (*db.Reading, *db.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.meters[meterID]
	if !ok {
		return nil, nil, fmt.Errorf("meter %q: %w", meterID, repository.ErrNotFound)
	}

	snapshot := *m
	reading, event, err := decide(&snapshot)
	if err != nil {
		return nil, nil, err
	}

	f.readings[meterID] = append(f.readings[meterID], *reading)
	m.Voltage = reading.Voltage
	m.CurrentDraw = reading.CurrentDraw
	m.ChargePct = reading.ChargePct
	if event != nil {
		f.events[event.DeviceID] = append(f.events[event.DeviceID], *event)
	}

	return reading, event, nil
}

func (f *fakeStore) InsertEvent(_ context.Context, e *db.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[e.DeviceID] = append(f.events[e.DeviceID], *e)
	return nil
}

func (f *fakeStore) ReadingsSince(_ context.Context, meterID uuid.UUID, since time.Time) ([]db.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Reading
	for _, r := range f.readings[meterID] {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) EventsByDevice(_ context.Context, deviceID string, limit int) ([]db.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.events[deviceID]
	var out []db.Event
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

func (f *fakeStore) deviceEvents(deviceID string) []db.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.Event(nil), f.events[deviceID]...)
}

func (f *fakeStore) deviceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.devices)
}

// fakePublisher records event notifications and can be made to fail.
type fakePublisher struct {
	mu        sync.Mutex
	published []mq.PowerEventMessage
	fail      bool
}

func (p *fakePublisher) PublishPowerEvent(_ context.Context, event mq.PowerEventMessage, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("publish failed")
	}
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) messages() []mq.PowerEventMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mq.PowerEventMessage(nil), p.published...)
}

func testConfig() *config.Config {
	return &config.Config{
		ServiceName: "power-manager-test",
		RabbitMQ: config.RabbitMQConfig{
			EventRoutingKey: "power.event.emitted",
		},
		Thresholds: config.ThresholdConfig{
			LowBatteryPct:      20.0,
			CriticalBatteryPct: 5.0,
			FullChargePct:      95.0,
			ShutdownWatts:      3.0,
		},
		Report: config.ReportConfig{
			EventFetchLimit: 200,
			EventEmbedLimit: 20,
		},
	}
}
