package power_test

import (
	"testing"

	"github.com/blackroad/power-manager/internal/power"
)

func pct(v float64) *float64 {
	return &v
}

func TestClassify_SolarAlwaysCharging(t *testing.T) {
	th := power.DefaultThresholds()

	if got := th.Classify(power.MeterSolar, pct(0)); got != power.StateCharging {
		t.Errorf("Expected charging for solar at 0%%, got %s", got)
	}

	if got := th.Classify(power.MeterSolar, nil); got != power.StateCharging {
		t.Errorf("Expected charging for solar with no charge reading, got %s", got)
	}
}

func TestClassify_UnknownWithoutReading(t *testing.T) {
	th := power.DefaultThresholds()

	if got := th.Classify(power.MeterBattery, nil); got != power.StateUnknown {
		t.Errorf("Expected unknown for battery with no charge reading, got %s", got)
	}
}

func TestClassify_FullBandBeforeNormal(t *testing.T) {
	th := power.DefaultThresholds()

	// 96 > 20, but the full-charge band wins.
	if got := th.Classify(power.MeterBattery, pct(96)); got != power.StateCharging {
		t.Errorf("Expected charging at 96%%, got %s", got)
	}

	if got := th.Classify(power.MeterBattery, pct(95)); got != power.StateCharging {
		t.Errorf("Expected charging at exactly 95%%, got %s", got)
	}
}

func TestClassify_Bands(t *testing.T) {
	th := power.DefaultThresholds()

	cases := []struct {
		pct  float64
		want power.PowerState
	}{
		{50, power.StateNormal},
		{20.1, power.StateNormal},
		{20, power.StateLow},
		{5, power.StateLow},
		{4.9, power.StateCritical},
		{0, power.StateCritical},
	}

	for _, c := range cases {
		if got := th.Classify(power.MeterBattery, pct(c.pct)); got != c.want {
			t.Errorf("Classify(battery, %.1f) = %s, want %s", c.pct, got, c.want)
		}
	}
}

func TestClassify_CustomThresholds(t *testing.T) {
	th := power.Thresholds{LowPct: 40, CriticalPct: 10, FullPct: 90}

	if got := th.Classify(power.MeterBattery, pct(30)); got != power.StateLow {
		t.Errorf("Expected low at 30%% with low band at 40, got %s", got)
	}

	if got := th.Classify(power.MeterBattery, pct(91)); got != power.StateCharging {
		t.Errorf("Expected charging at 91%% with full band at 90, got %s", got)
	}
}

func TestWorstState_CriticalDominates(t *testing.T) {
	states := []power.PowerState{power.StateNormal, power.StateCritical, power.StateCharging}

	if got := power.WorstState(states); got != power.StateCritical {
		t.Errorf("Expected critical, got %s", got)
	}
}

func TestWorstState_ChargingDoesNotMaskLow(t *testing.T) {
	states := []power.PowerState{power.StateCharging, power.StateLow}

	if got := power.WorstState(states); got != power.StateLow {
		t.Errorf("Expected low, got %s", got)
	}
}

func TestWorstState_UnknownBeatsCharging(t *testing.T) {
	states := []power.PowerState{power.StateCharging, power.StateUnknown, power.StateNormal}

	if got := power.WorstState(states); got != power.StateUnknown {
		t.Errorf("Expected unknown, got %s", got)
	}
}

func TestWorstState_Empty(t *testing.T) {
	if got := power.WorstState(nil); got != power.StateUnknown {
		t.Errorf("Expected unknown for a device with no meters, got %s", got)
	}
}
