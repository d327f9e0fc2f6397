package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackroad/power-manager/internal/config"
	"github.com/blackroad/power-manager/internal/db"
	"github.com/blackroad/power-manager/internal/logging"
	"github.com/blackroad/power-manager/internal/mq"
	"github.com/blackroad/power-manager/internal/power"
	"github.com/blackroad/power-manager/internal/validator"
)

// PowerService is the state-derivation and alerting engine. It turns raw
// readings into classified power states, auto-fires threshold events for
// battery meters, and answers runtime/budget/report queries.
type PowerService struct {
	store     Store
	publisher EventNotifier
	cfg       *config.Config
	logger    *zap.Logger
}

// NewPowerService creates a new power service
func NewPowerService(store Store, publisher EventNotifier, cfg *config.Config, logger *zap.Logger) *PowerService {
	return &PowerService{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// RegisterDeviceInput is the registration payload for a device.
type RegisterDeviceInput struct {
	ID                string
	Name              string
	ShutdownThreshold float64
	TargetWh          *float64
}

// RegisterDevice registers a device. Registration is an idempotent upsert:
// a second call with the same id updates name and thresholds in place.
func (s *PowerService) RegisterDevice(ctx context.Context, in RegisterDeviceInput) (*db.Device, error) {
	if in.ShutdownThreshold == 0 {
		in.ShutdownThreshold = s.cfg.Thresholds.ShutdownWatts
	}
	if err := validator.ValidateDeviceRegistration(in.ID, in.Name, in.ShutdownThreshold); err != nil {
		return nil, err
	}

	device := &db.Device{
		ID:                in.ID,
		Name:              in.Name,
		ShutdownThreshold: in.ShutdownThreshold,
		TargetWh:          in.TargetWh,
	}
	if err := s.store.UpsertDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	logging.WithDevice(s.logger, device.ID).Info("device registered",
		zap.String("name", device.Name),
		zap.Float64("shutdown_threshold", device.ShutdownThreshold),
	)

	return device, nil
}

// AddMeterInput is the creation payload for a meter.
type AddMeterInput struct {
	DeviceID   string
	Type       string
	CapacityWh float64
	Name       *string
	// Thresholds overrides the configured default bands when non-nil.
	Thresholds *power.Thresholds
}

// AddMeter attaches a meter to an existing device. The meter type is
// immutable after creation; the charge percentage stays unknown until the
// first reading that carries one.
func (s *PowerService) AddMeter(ctx context.Context, in AddMeterInput) (*db.Meter, error) {
	typ, err := validator.ValidateMeterInput(in.DeviceID, in.Type, in.CapacityWh)
	if err != nil {
		return nil, err
	}

	// Meters must reference a live device.
	if _, err := s.store.GetDevice(ctx, in.DeviceID); err != nil {
		return nil, err
	}

	thresholds := power.Thresholds{
		LowPct:      s.cfg.Thresholds.LowBatteryPct,
		CriticalPct: s.cfg.Thresholds.CriticalBatteryPct,
		FullPct:     s.cfg.Thresholds.FullChargePct,
	}
	if in.Thresholds != nil {
		thresholds = *in.Thresholds
	}
	if err := validator.ValidateThresholds(thresholds); err != nil {
		return nil, err
	}

	meter := &db.Meter{
		ID:         uuid.New(),
		DeviceID:   in.DeviceID,
		Type:       typ,
		CapacityWh: in.CapacityWh,
		Thresholds: thresholds,
		Name:       in.Name,
	}
	if err := s.store.InsertMeter(ctx, meter); err != nil {
		return nil, fmt.Errorf("failed to add meter: %w", err)
	}

	logging.WithDevice(s.logger, meter.DeviceID).Info("meter added",
		zap.String("meter_id", meter.ID.String()),
		zap.String("type", string(meter.Type)),
		zap.Float64("capacity_wh", meter.CapacityWh),
	)

	return meter, nil
}

// GetDevice fetches a device by id.
func (s *PowerService) GetDevice(ctx context.Context, id string) (*db.Device, error) {
	return s.store.GetDevice(ctx, id)
}

// GetMeter fetches a meter by id.
func (s *PowerService) GetMeter(ctx context.Context, id uuid.UUID) (*db.Meter, error) {
	return s.store.GetMeter(ctx, id)
}

// ListMeters fetches all meters of a device.
func (s *PowerService) ListMeters(ctx context.Context, deviceID string) ([]db.Meter, error) {
	if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.store.ListMetersByDevice(ctx, deviceID)
}

// LogPower records a reading for a meter, updates the meter's live
// projection and auto-emits at most one threshold event. The reading,
// projection update and event commit as one unit; the notification fan-out
// happens after commit and its failure never fails the call.
//
// A reading that omits the charge percentage retains the meter's previous
// one. Out-of-range percentages are clamped to [0,100], not rejected.
func (s *PowerService) LogPower(ctx context.Context, meterID uuid.UUID, voltage, current float64, chargePct *float64) (*db.Reading, error) {
	reading, event, err := s.store.ApplyReading(ctx, meterID, func(m *db.Meter) (*db.Reading, *db.Event, error) {
		pct := m.ChargePct
		if chargePct != nil {
			clamped := validator.ClampChargePct(*chargePct)
			pct = &clamped
		}

		now := time.Now().UTC()
		reading := &db.Reading{
			ID:          uuid.New(),
			MeterID:     m.ID,
			Voltage:     voltage,
			CurrentDraw: current,
			Wattage:     power.Round(voltage*current, 4),
			ChargePct:   pct,
			Timestamp:   now,
		}

		var event *db.Event
		if m.Type == power.MeterBattery && pct != nil {
			// At most one auto event per reading: low_battery and
			// discharge are mutually exclusive.
			switch {
			case *pct <= m.Thresholds.CriticalPct:
				event = s.newAutoEvent(m.DeviceID, power.EventLowBattery, *pct, now)
			case *pct <= m.Thresholds.LowPct:
				event = s.newAutoEvent(m.DeviceID, power.EventDischarge, *pct, now)
			}
		}

		return reading, event, nil
	})
	if err != nil {
		return nil, err
	}

	meterLogger := logging.WithMeter(s.logger, meterID.String())
	meterLogger.Info("reading logged",
		zap.Float64("voltage", voltage),
		zap.Float64("current", current),
		zap.Float64("wattage", reading.Wattage),
	)

	if event != nil {
		meterLogger.Warn("auto event emitted",
			zap.String("type", string(event.Type)),
			zap.Float64("charge_pct", event.Value),
		)
		s.notify(ctx, event, true)
	}

	return reading, nil
}

func (s *PowerService) newAutoEvent(deviceID string, typ power.EventType, value float64, ts time.Time) *db.Event {
	return &db.Event{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		Type:      typ,
		Value:     value,
		Timestamp: ts,
	}
}

// TriggerEvent records a manually triggered event of any type.
func (s *PowerService) TriggerEvent(ctx context.Context, deviceID, eventType string, value float64, note *string) (*db.Event, error) {
	typ, err := power.ParseEventType(eventType)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, validator.ErrInvalidInput)
	}

	if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	event := &db.Event{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		Type:      typ,
		Value:     value,
		Timestamp: time.Now().UTC(),
		Note:      note,
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	logging.WithDevice(s.logger, deviceID).Info("event triggered",
		zap.String("type", string(typ)),
		zap.Float64("value", value),
	)
	s.notify(ctx, event, false)

	return event, nil
}

// notify publishes the stored event. Publish failures are logged and
// swallowed; the reading and event are already committed.
func (s *PowerService) notify(ctx context.Context, event *db.Event, auto bool) {
	msg := mq.PowerEventMessage{
		EventID:   event.ID.String(),
		DeviceID:  event.DeviceID,
		Type:      string(event.Type),
		Value:     event.Value,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Auto:      auto,
	}
	if err := s.publisher.PublishPowerEvent(ctx, msg, s.cfg.RabbitMQ.EventRoutingKey); err != nil {
		s.logger.Error("failed to publish power event",
			zap.Error(err),
			zap.String("device_id", event.DeviceID),
			zap.String("type", string(event.Type)),
		)
	}
}

// DeviceEvents fetches a device's events, newest first.
func (s *PowerService) DeviceEvents(ctx context.Context, deviceID string, limit int) ([]db.Event, error) {
	if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.store.EventsByDevice(ctx, deviceID, limit)
}

// MeterHistory fetches a meter's readings over the trailing hours window,
// oldest first.
func (s *PowerService) MeterHistory(ctx context.Context, meterID uuid.UUID, hours int) ([]db.Reading, error) {
	if _, err := s.store.GetMeter(ctx, meterID); err != nil {
		return nil, err
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	return s.store.ReadingsSince(ctx, meterID, since)
}

// MeterWattage returns the instantaneous wattage of a meter's live state.
func (s *PowerService) MeterWattage(ctx context.Context, meterID uuid.UUID) (float64, error) {
	meter, err := s.store.GetMeter(ctx, meterID)
	if err != nil {
		return 0, err
	}
	return meter.Wattage(), nil
}
