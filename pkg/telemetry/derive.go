package telemetry

import "github.com/solarbot/solarbot/pkg/types"

// DefaultExportGuardBand is how far, in watts, the expected surplus must
// exceed zero before the grid reading is considered an export. It absorbs
// measurement noise between the individual meters.
const DefaultExportGuardBand = 50

// Derive computes the signed grid flow and battery direction for a sample.
func Derive(s types.TelemetrySample, guardBand int) types.DerivedMetrics {
	return types.DerivedMetrics{
		SignedGridWatts:  SignedGrid(s, guardBand),
		BatteryDirection: BatteryDirection(s),
	}
}

// BatteryDirection compares everything flowing in (solar and grid) against
// what the house consumes.
func BatteryDirection(s types.TelemetrySample) types.BatteryDirection {
	in := s.PVWatts + s.GridWatts
	switch {
	case in > s.LoadWatts:
		return types.BatteryCharging
	case in < s.LoadWatts:
		return types.BatteryDischarging
	default:
		return types.BatterySteady
	}
}

// SignedGrid resolves the direction of the grid reading. The portal only
// reports its magnitude, so the flow is inferred from what solar leaves over
// after the load and the battery: a surplus beyond the guard band means we
// are exporting, reported as a negative value.
func SignedGrid(s types.TelemetrySample, guardBand int) int {
	expected := s.PVWatts - s.LoadWatts - s.BatteryWatts
	if expected > guardBand {
		return -s.GridWatts
	}
	return s.GridWatts
}
