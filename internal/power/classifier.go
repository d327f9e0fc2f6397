package power

// Classify maps a meter's type and latest charge percentage to a power
// state. chargePct is nil when the meter has never logged a charge reading.
//
// Solar meters are generation-only and always report charging. The full
// band is checked before the normal band, so a battery sitting at 96%
// reports charging rather than normal.
func (t Thresholds) Classify(typ MeterType, chargePct *float64) PowerState {
	if typ == MeterSolar {
		return StateCharging
	}
	if chargePct == nil {
		return StateUnknown
	}
	pct := *chargePct
	switch {
	case pct >= t.FullPct:
		return StateCharging
	case pct > t.LowPct:
		return StateNormal
	case pct >= t.CriticalPct:
		return StateLow
	default:
		return StateCritical
	}
}

// stateRank orders states by severity for fleet aggregation. A critical
// meter must never be masked by a charging meter on the same device.
var stateRank = map[PowerState]int{
	StateNormal:   0,
	StateCharging: 1,
	StateUnknown:  2,
	StateLow:      3,
	StateCritical: 4,
}

// WorstState returns the highest-severity state among the given states.
// A device with no meters has no measurements and reports unknown.
func WorstState(states []PowerState) PowerState {
	if len(states) == 0 {
		return StateUnknown
	}
	worst := states[0]
	for _, s := range states[1:] {
		if stateRank[s] > stateRank[worst] {
			worst = s
		}
	}
	return worst
}
