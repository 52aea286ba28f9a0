package source

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarbot/solarbot/pkg/types"
)

const (
	simCapacityKWH  = 10.0
	simMaxRateKW    = 5.0
	simMinSOC       = 10.0
	simStartSOC     = 50.0
	simMaxStepWidth = 5 * time.Minute
)

// Simulated produces a synthetic day of solar production against a small
// battery. It is used for dry runs without a real inverter.
type Simulated struct {
	mu       sync.Mutex
	location *time.Location
	peakKW   float64
	now      func() time.Time

	authed    bool
	timestamp time.Time
	soc       float64
	last      types.RawFields
}

func configuredSimulated() *Simulated {
	location := lflag.String("simulated-location", "Africa/Johannesburg", "Timezone the simulated plant is in")
	peakW := lflag.Int("simulated-peak-watts", 3000, "Peak solar output of the simulated plant")

	s := &Simulated{}

	lflag.Do(func() {
		loc, err := time.LoadLocation(*location)
		if err != nil {
			loc = time.UTC
		}
		s.location = loc
		s.peakKW = float64(*peakW) / 1000
		s.now = time.Now
	})

	return s
}

// NewSimulated returns a simulated source in loc whose solar output peaks
// at peakW watts. now is used as the clock.
func NewSimulated(loc *time.Location, peakW int, now func() time.Time) *Simulated {
	return &Simulated{
		location: loc,
		peakKW:   float64(peakW) / 1000,
		now:      now,
	}
}

// Authenticate starts a simulated session.
func (s *Simulated) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return errors.New("simulated source not configured")
	}
	s.authed = true
	return nil
}

// ReadFields advances the simulation to now and returns the last step's flow.
func (s *Simulated) ReadFields(ctx context.Context) (types.RawFields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authed {
		return types.RawFields{}, ErrSessionExpired
	}

	now := s.now().In(s.location)
	if s.timestamp.IsZero() {
		s.timestamp = now.Add(-time.Minute)
		s.soc = simStartSOC
	}

	if !now.After(s.timestamp) {
		return s.last, nil
	}

	var batteryKW, solarKW, homeKW, gridKW float64
	for stepStart := s.timestamp; stepStart.Before(now); {
		stepEnd := stepStart.Add(simMaxStepWidth)
		if stepEnd.After(now) {
			stepEnd = now
		}
		batteryKW, solarKW, homeKW, gridKW = s.step(stepStart, stepEnd)
		stepStart = stepEnd
	}
	s.timestamp = now

	s.last = types.RawFields{
		PV:      formatWatts(math.Round(solarKW * 1000)),
		Load:    formatWatts(math.Round(homeKW * 1000)),
		Grid:    formatWatts(math.Round(math.Abs(gridKW) * 1000)),
		Battery: formatWatts(math.Round(batteryKW * 1000)),
		SOC:     strconv.Itoa(int(math.Round(s.soc))) + "%",
	}
	return s.last, nil
}

// step advances the battery across [start, end). Battery power is negative
// while charging, grid power negative while exporting.
func (s *Simulated) step(start, end time.Time) (batteryKW, solarKW, homeKW, gridKW float64) {
	hours := end.Sub(start).Hours()
	mid := start.Add(end.Sub(start) / 2)
	hour := float64(mid.Hour()) + float64(mid.Minute())/60.0

	// home load 1.0 - 2.0 kW on a sine wave that peaks every 2 hours
	homeKW = 1.5 + 0.5*math.Sin(hour*math.Pi)

	// bell curve peaking at 12:30
	if hour >= 6 && hour <= 19 {
		solarKW = s.peakKW * math.Sin((hour-6)/13*math.Pi)
	}

	net := solarKW - homeKW
	if net > 0 {
		spaceKWH := (100 - s.soc) / 100 * simCapacityKWH
		charge := min(net, simMaxRateKW, spaceKWH/hours)
		batteryKW = -charge
		gridKW = -(net - charge)
	} else {
		usableKWH := max(s.soc-simMinSOC, 0) / 100 * simCapacityKWH
		discharge := min(-net, simMaxRateKW, usableKWH/hours)
		batteryKW = discharge
		gridKW = -net - discharge
	}

	s.soc -= batteryKW * hours / simCapacityKWH * 100
	s.soc = min(max(s.soc, 0), 100)
	return batteryKW, solarKW, homeKW, gridKW
}

// Close ends the simulated session.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authed = false
	return nil
}
