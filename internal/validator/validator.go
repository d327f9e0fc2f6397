package validator

import (
	"errors"
	"fmt"

	"github.com/blackroad/power-manager/internal/power"
)

// ErrInvalidInput marks registration or reading input the engine rejects.
// Out-of-range charge percentages are not rejected; they are clamped.
var ErrInvalidInput = errors.New("invalid input")

// ClampChargePct corrects an out-of-range charge percentage into [0, 100].
func ClampChargePct(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ValidateDeviceRegistration checks device registration input.
func ValidateDeviceRegistration(id, name string, shutdownThreshold float64) error {
	if id == "" {
		return fmt.Errorf("device id is required: %w", ErrInvalidInput)
	}
	if name == "" {
		return fmt.Errorf("device name is required: %w", ErrInvalidInput)
	}
	if shutdownThreshold <= 0 {
		return fmt.Errorf("shutdown threshold must be positive, got %.2f: %w", shutdownThreshold, ErrInvalidInput)
	}
	return nil
}

// ValidateMeterInput checks meter creation input and parses the meter type.
func ValidateMeterInput(deviceID, meterType string, capacityWh float64) (power.MeterType, error) {
	if deviceID == "" {
		return "", fmt.Errorf("device id is required: %w", ErrInvalidInput)
	}
	typ, err := power.ParseMeterType(meterType)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	if capacityWh < 0 {
		return "", fmt.Errorf("capacity must not be negative, got %.2f: %w", capacityWh, ErrInvalidInput)
	}
	return typ, nil
}

// ValidateThresholds checks a per-meter threshold override. The bands must
// be ordered so the classifier stays total: critical <= low < full.
func ValidateThresholds(t power.Thresholds) error {
	if t.CriticalPct < 0 || t.FullPct > 100 {
		return fmt.Errorf("thresholds must lie in [0,100]: %w", ErrInvalidInput)
	}
	if t.CriticalPct > t.LowPct || t.LowPct >= t.FullPct {
		return fmt.Errorf("thresholds must be ordered critical <= low < full: %w", ErrInvalidInput)
	}
	return nil
}
