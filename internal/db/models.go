package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/blackroad/power-manager/internal/power"
)

// Device represents a registered edge device.
type Device struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	ShutdownThreshold float64  `json:"shutdown_threshold"`
	TargetWh          *float64 `json:"target_wh,omitempty"`
}

// Meter is the live-state projection of a power source/sink. Its voltage,
// current draw and charge percentage mirror the most recent reading only;
// the append-only history lives in Reading rows. ChargePct is nil until a
// reading carrying a charge percentage has been logged.
type Meter struct {
	ID          uuid.UUID        `json:"id"`
	DeviceID    string           `json:"device_id"`
	Type        power.MeterType  `json:"type"`
	Voltage     float64          `json:"voltage"`
	CurrentDraw float64          `json:"current_draw"`
	CapacityWh  float64          `json:"capacity_wh"`
	ChargePct   *float64         `json:"charge_pct,omitempty"`
	Thresholds  power.Thresholds `json:"thresholds"`
	Name        *string          `json:"name,omitempty"`
}

// Wattage is the instantaneous power from the latest reading.
func (m *Meter) Wattage() float64 {
	return power.Round(m.Voltage*m.CurrentDraw, 4)
}

// State classifies the meter from its live projection fields.
func (m *Meter) State() power.PowerState {
	return m.Thresholds.Classify(m.Type, m.ChargePct)
}

// Reading is one immutable point in a meter's append-only history.
type Reading struct {
	ID          uuid.UUID `json:"id"`
	MeterID     uuid.UUID `json:"meter_id"`
	Voltage     float64   `json:"voltage"`
	CurrentDraw float64   `json:"current_draw"`
	Wattage     float64   `json:"wattage"`
	ChargePct   *float64  `json:"charge_pct,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Event is an immutable power event, either auto-emitted by the alert
// engine or triggered manually.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	DeviceID  string          `json:"device_id"`
	Type      power.EventType `json:"type"`
	Value     float64         `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
	Note      *string         `json:"note,omitempty"`
}
