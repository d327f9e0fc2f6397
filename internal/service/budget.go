package service

import (
	"context"

	"github.com/blackroad/power-manager/internal/db"
	"github.com/blackroad/power-manager/internal/power"
)

// BudgetSummary is the fleet-wide result of a power budget check.
type BudgetSummary struct {
	TotalWattage float64                 `json:"total_wattage"`
	Devices      map[string]DeviceBudget `json:"devices"`
}

// DeviceBudget is the per-device slice of a budget check.
type DeviceBudget struct {
	TotalWattage          float64          `json:"total_wattage"`
	State                 power.PowerState `json:"state"`
	BatteryCount          int              `json:"battery_count"`
	SolarCount            int              `json:"solar_count"`
	AvgChargePct          *float64         `json:"avg_charge_pct,omitempty"`
	EstimatedRuntimeHours *float64         `json:"estimated_runtime_hours,omitempty"`
}

// EstimateRuntime estimates the remaining battery runtime of a device in
// hours from the latest reading of its first battery meter. The estimate is
// absent (ok=false) when the device has no battery meter, the battery is
// not discharging, or no charge percentage has ever been logged. "Not
// discharging" is a normal state, not an error.
func (s *PowerService) EstimateRuntime(ctx context.Context, deviceID string) (float64, bool, error) {
	if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
		return 0, false, err
	}
	meters, err := s.store.ListMetersByDevice(ctx, deviceID)
	if err != nil {
		return 0, false, err
	}
	hours, ok := estimateRuntime(meters)
	return hours, ok, nil
}

func estimateRuntime(meters []db.Meter) (float64, bool) {
	for i := range meters {
		m := &meters[i]
		if m.Type != power.MeterBattery {
			continue
		}
		if m.CurrentDraw <= 0 || m.ChargePct == nil {
			return 0, false
		}
		wattage := m.Wattage()
		if wattage <= 0 {
			return 0, false
		}
		remainingWh := m.CapacityWh * (*m.ChargePct / 100.0)
		return power.Round(remainingWh/wattage, 2), true
	}
	return 0, false
}

// PowerBudgetCheck aggregates wattage and worst-case power state across a
// set of devices. Any unknown device id fails the whole call; there is no
// partial aggregation.
func (s *PowerService) PowerBudgetCheck(ctx context.Context, deviceIDs []string) (*BudgetSummary, error) {
	summary := &BudgetSummary{
		Devices: make(map[string]DeviceBudget, len(deviceIDs)),
	}

	for _, deviceID := range deviceIDs {
		if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
			return nil, err
		}
		meters, err := s.store.ListMetersByDevice(ctx, deviceID)
		if err != nil {
			return nil, err
		}

		budget := DeviceBudget{}
		states := make([]power.PowerState, 0, len(meters))
		var chargeSum float64
		var chargeCount int

		for i := range meters {
			m := &meters[i]
			budget.TotalWattage += m.Wattage()
			states = append(states, m.State())

			switch m.Type {
			case power.MeterBattery:
				budget.BatteryCount++
				if m.ChargePct != nil {
					chargeSum += *m.ChargePct
					chargeCount++
				}
			case power.MeterSolar:
				budget.SolarCount++
			}
		}

		budget.TotalWattage = power.Round(budget.TotalWattage, 4)
		budget.State = power.WorstState(states)
		if chargeCount > 0 {
			avg := power.Round(chargeSum/float64(chargeCount), 2)
			budget.AvgChargePct = &avg
		}
		if hours, ok := estimateRuntime(meters); ok {
			budget.EstimatedRuntimeHours = &hours
		}

		summary.Devices[deviceID] = budget
		summary.TotalWattage += budget.TotalWattage
	}

	summary.TotalWattage = power.Round(summary.TotalWattage, 4)
	return summary, nil
}
