package power

import (
	"fmt"
	"math"
)

// MeterType identifies what a meter measures on a device.
type MeterType string

const (
	MeterMain    MeterType = "main"
	MeterBattery MeterType = "battery"
	MeterSolar   MeterType = "solar"
	MeterUPS     MeterType = "ups"
)

// ParseMeterType parses a meter type string.
func ParseMeterType(s string) (MeterType, error) {
	switch MeterType(s) {
	case MeterMain, MeterBattery, MeterSolar, MeterUPS:
		return MeterType(s), nil
	}
	return "", fmt.Errorf("unknown meter type %q", s)
}

// EventType identifies a power event.
type EventType string

const (
	EventChargeStart EventType = "charge_start"
	EventDischarge   EventType = "discharge"
	EventLowBattery  EventType = "low_battery"
	EventShutdown    EventType = "shutdown"
	EventRestore     EventType = "restore"
)

// ParseEventType parses an event type string.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventChargeStart, EventDischarge, EventLowBattery, EventShutdown, EventRestore:
		return EventType(s), nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// PowerState is the classified state of a single meter.
type PowerState string

const (
	StateNormal   PowerState = "normal"
	StateLow      PowerState = "low"
	StateCritical PowerState = "critical"
	StateCharging PowerState = "charging"
	StateUnknown  PowerState = "unknown"
)

// Default thresholds; overridable per meter/device at creation time.
const (
	DefaultLowPct        = 20.0
	DefaultCriticalPct   = 5.0
	DefaultFullPct       = 95.0
	DefaultShutdownWatts = 3.0
)

// Thresholds holds the charge-percentage bands a meter is classified
// against. Every meter carries its own copy so heterogeneous hardware
// profiles can override the defaults.
type Thresholds struct {
	LowPct      float64 `json:"low_pct"`
	CriticalPct float64 `json:"critical_pct"`
	FullPct     float64 `json:"full_pct"`
}

// DefaultThresholds returns the documented default bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowPct:      DefaultLowPct,
		CriticalPct: DefaultCriticalPct,
		FullPct:     DefaultFullPct,
	}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
