package types

import "time"

// RawFields holds the five values exactly as the dashboard displays them,
// e.g. "1234W" or "87%".
type RawFields struct {
	PV      string `json:"pv"`
	Load    string `json:"load"`
	Grid    string `json:"grid"`
	Battery string `json:"battery"`
	SOC     string `json:"soc"`
}

// TelemetrySample is one normalized reading from the inverter. All power
// fields are non-negative magnitudes as reported by the source; direction is
// never known from the sample alone and must be derived.
type TelemetrySample struct {
	PVWatts      int       `json:"pvWatts"`
	LoadWatts    int       `json:"loadWatts"`
	GridWatts    int       `json:"gridWatts"`
	BatteryWatts int       `json:"batteryWatts"`
	SOCPercent   int       `json:"socPercent"`
	Timestamp    time.Time `json:"timestamp"`
}

// IsZero reports whether every field of the reading is zero. The dashboard
// reports this while it is still loading, so such a frame is never real.
func (s TelemetrySample) IsZero() bool {
	return s.PVWatts == 0 && s.LoadWatts == 0 && s.GridWatts == 0 && s.BatteryWatts == 0 && s.SOCPercent == 0
}

// BatteryDirection describes which way energy is flowing through the battery.
type BatteryDirection string

const (
	BatteryCharging    BatteryDirection = "charging"
	BatteryDischarging BatteryDirection = "discharging"
	BatterySteady      BatteryDirection = "steady"
)

// DerivedMetrics are quantities computed from a TelemetrySample.
type DerivedMetrics struct {
	// SignedGridWatts is negative when exporting to the grid and positive
	// when importing.
	SignedGridWatts  int              `json:"signedGridWatts"`
	BatteryDirection BatteryDirection `json:"batteryDirection"`
}

// Exporting reports whether the plant is feeding power into the grid.
func (d DerivedMetrics) Exporting() bool {
	return d.SignedGridWatts < 0
}
