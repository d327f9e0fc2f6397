package service

import (
	"context"
	"fmt"
	"time"

	"github.com/blackroad/power-manager/internal/db"
	"github.com/blackroad/power-manager/internal/power"
	"github.com/blackroad/power-manager/internal/validator"
)

// Report is the historical power report for one device. It serializes to
// JSON losslessly; statistics for meters with no readings in the window are
// omitted rather than rendered as zeroes.
type Report struct {
	DeviceID          string        `json:"device_id"`
	DeviceName        string        `json:"device_name"`
	ShutdownThreshold float64       `json:"shutdown_threshold"`
	TargetWh          *float64      `json:"target_wh,omitempty"`
	PeriodDays        int           `json:"period_days"`
	GeneratedAt       time.Time     `json:"generated_at"`
	Meters            []MeterReport `json:"meters"`
	EventCount        int           `json:"event_count"`
	Events            []EventRecord `json:"events"`
}

// MeterReport holds one meter's statistics over the report window plus its
// current classified state.
type MeterReport struct {
	MeterID      string           `json:"meter_id"`
	Name         *string          `json:"name,omitempty"`
	Type         power.MeterType  `json:"type"`
	CurrentState power.PowerState `json:"current_state"`
	ReadingCount int              `json:"reading_count"`
	AvgWattage   *float64         `json:"avg_wattage,omitempty"`
	MinWattage   *float64         `json:"min_wattage,omitempty"`
	MaxWattage   *float64         `json:"max_wattage,omitempty"`
	MinChargePct *float64         `json:"min_charge_pct,omitempty"`
}

// EventRecord is the report-facing shape of a stored event.
type EventRecord struct {
	ID        string          `json:"id"`
	DeviceID  string          `json:"device_id"`
	Type      power.EventType `json:"type"`
	Value     float64         `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
	Note      *string         `json:"note,omitempty"`
}

// ExportReport assembles per-meter statistics over the trailing days window
// and the device's recent events into a structured report.
func (s *PowerService) ExportReport(ctx context.Context, deviceID string, days int) (*Report, error) {
	if days <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d days: %w", days, validator.ErrInvalidInput)
	}

	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	meters, err := s.store.ListMetersByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)

	report := &Report{
		DeviceID:          device.ID,
		DeviceName:        device.Name,
		ShutdownThreshold: device.ShutdownThreshold,
		TargetWh:          device.TargetWh,
		PeriodDays:        days,
		GeneratedAt:       now,
		Meters:            make([]MeterReport, 0, len(meters)),
	}

	for i := range meters {
		m := &meters[i]
		readings, err := s.store.ReadingsSince(ctx, m.ID, since)
		if err != nil {
			return nil, err
		}
		report.Meters = append(report.Meters, buildMeterReport(m, readings))
	}

	events, err := s.store.EventsByDevice(ctx, deviceID, s.cfg.Report.EventFetchLimit)
	if err != nil {
		return nil, err
	}
	report.EventCount = len(events)
	if len(events) > s.cfg.Report.EventEmbedLimit {
		events = events[:s.cfg.Report.EventEmbedLimit]
	}
	report.Events = make([]EventRecord, 0, len(events))
	for _, e := range events {
		report.Events = append(report.Events, EventRecord{
			ID:        e.ID.String(),
			DeviceID:  e.DeviceID,
			Type:      e.Type,
			Value:     e.Value,
			Timestamp: e.Timestamp,
			Note:      e.Note,
		})
	}

	return report, nil
}

func buildMeterReport(m *db.Meter, readings []db.Reading) MeterReport {
	mr := MeterReport{
		MeterID:      m.ID.String(),
		Name:         m.Name,
		Type:         m.Type,
		CurrentState: m.State(),
		ReadingCount: len(readings),
	}
	if len(readings) == 0 {
		return mr
	}

	var sum float64
	min := readings[0].Wattage
	max := readings[0].Wattage
	var minCharge *float64

	for _, r := range readings {
		sum += r.Wattage
		if r.Wattage < min {
			min = r.Wattage
		}
		if r.Wattage > max {
			max = r.Wattage
		}
		if r.ChargePct != nil && (minCharge == nil || *r.ChargePct < *minCharge) {
			pct := *r.ChargePct
			minCharge = &pct
		}
	}

	avg := power.Round(sum/float64(len(readings)), 4)
	mr.AvgWattage = &avg
	mr.MinWattage = &min
	mr.MaxWattage = &max
	mr.MinChargePct = minCharge
	return mr
}
