package telemetry

import (
	"testing"

	"github.com/solarbot/solarbot/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestBatteryDirection(t *testing.T) {
	tests := []struct {
		name string
		s    types.TelemetrySample
		want types.BatteryDirection
	}{
		{"Solar Surplus", types.TelemetrySample{PVWatts: 2000, LoadWatts: 500}, types.BatteryCharging},
		{"Grid Covers Load", types.TelemetrySample{PVWatts: 100, GridWatts: 900, LoadWatts: 500}, types.BatteryCharging},
		{"Night", types.TelemetrySample{LoadWatts: 400}, types.BatteryDischarging},
		{"Balanced", types.TelemetrySample{PVWatts: 300, GridWatts: 200, LoadWatts: 500}, types.BatterySteady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BatteryDirection(tt.s))
		})
	}
}

func TestSignedGrid(t *testing.T) {
	t.Run("Exporting", func(t *testing.T) {
		s := types.TelemetrySample{PVWatts: 600, LoadWatts: 300, BatteryWatts: 100, GridWatts: 200}
		assert.Equal(t, -200, SignedGrid(s, DefaultExportGuardBand))
	})

	t.Run("Importing", func(t *testing.T) {
		s := types.TelemetrySample{PVWatts: 300, LoadWatts: 300, BatteryWatts: 0, GridWatts: 50}
		assert.Equal(t, 50, SignedGrid(s, DefaultExportGuardBand))
	})

	t.Run("Guard Band Is Exclusive", func(t *testing.T) {
		s := types.TelemetrySample{PVWatts: 350, LoadWatts: 300, GridWatts: 40}
		assert.Equal(t, 40, SignedGrid(s, DefaultExportGuardBand), "a surplus of exactly 50W is noise")
		s.PVWatts = 351
		assert.Equal(t, -40, SignedGrid(s, DefaultExportGuardBand))
	})

	t.Run("Custom Guard Band", func(t *testing.T) {
		s := types.TelemetrySample{PVWatts: 600, LoadWatts: 300, BatteryWatts: 100, GridWatts: 200}
		assert.Equal(t, 200, SignedGrid(s, 250))
	})
}

func TestDerive(t *testing.T) {
	s := types.TelemetrySample{PVWatts: 600, LoadWatts: 300, BatteryWatts: 100, GridWatts: 200}
	d := Derive(s, DefaultExportGuardBand)
	assert.Equal(t, types.DerivedMetrics{
		SignedGridWatts:  -200,
		BatteryDirection: types.BatteryCharging,
	}, d)
	assert.True(t, d.Exporting())
}
