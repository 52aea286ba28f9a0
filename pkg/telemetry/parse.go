package telemetry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/solarbot/solarbot/pkg/types"
)

// ErrSentinelFrame is returned alongside a sample whose every field is zero.
// The dashboard renders all zeros before its data has loaded, so the frame
// must not be published.
var ErrSentinelFrame = errors.New("all telemetry fields are zero")

// ParseError describes a field whose text is not a number once units, signs
// and whitespace are stripped.
type ParseError struct {
	Field string
	Text  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s reading %q: %v", e.Field, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse converts the raw dashboard text into a sample stamped with at.
// When every field is zero the sample is returned together with
// ErrSentinelFrame.
func Parse(raw types.RawFields, at time.Time) (types.TelemetrySample, error) {
	var s types.TelemetrySample
	var err error

	if s.PVWatts, err = parseWatts("pv", raw.PV); err != nil {
		return types.TelemetrySample{}, err
	}
	if s.LoadWatts, err = parseWatts("load", raw.Load); err != nil {
		return types.TelemetrySample{}, err
	}
	if s.GridWatts, err = parseWatts("grid", raw.Grid); err != nil {
		return types.TelemetrySample{}, err
	}
	if s.BatteryWatts, err = parseWatts("battery", raw.Battery); err != nil {
		return types.TelemetrySample{}, err
	}
	if s.SOCPercent, err = parsePercent("soc", raw.SOC); err != nil {
		return types.TelemetrySample{}, err
	}
	s.Timestamp = at

	if s.IsZero() {
		return s, ErrSentinelFrame
	}
	return s, nil
}

func parseWatts(field, text string) (int, error) {
	num := stripDecorations(text)
	scale := 1.0
	lower := strings.ToLower(num)
	switch {
	case strings.HasSuffix(lower, "kw"):
		scale = 1000
		num = num[:len(num)-2]
	case strings.HasSuffix(lower, "w"):
		num = num[:len(num)-1]
	}
	v, err := parseMagnitude(strings.TrimSpace(num), scale)
	if err != nil {
		return 0, &ParseError{Field: field, Text: text, Err: err}
	}
	return v, nil
}

func parsePercent(field, text string) (int, error) {
	num := strings.TrimSpace(strings.TrimSuffix(stripDecorations(text), "%"))
	v, err := parseMagnitude(num, 1)
	if err != nil {
		return 0, &ParseError{Field: field, Text: text, Err: err}
	}
	if v > 100 {
		return 0, &ParseError{Field: field, Text: text, Err: errors.New("percentage above 100")}
	}
	return v, nil
}

// stripDecorations removes surrounding whitespace, a leading sign and
// thousands separators. The unit suffix is left for the caller.
func stripDecorations(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimLeft(s, "+-")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

// parseMagnitude only accepts plain decimal digits with an optional
// fractional part; strconv alone would also take "NaN", "Inf" and hex floats.
func parseMagnitude(num string, scale float64) (int, error) {
	if num == "" {
		return 0, errors.New("empty value")
	}
	dots := 0
	for _, r := range num {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
			dots++
		default:
			return 0, fmt.Errorf("unexpected character %q", r)
		}
	}
	if dots > 1 || num == "." {
		return 0, errors.New("malformed number")
	}
	if dots == 0 && scale == 1 {
		return strconv.Atoi(num)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	v := math.Round(f * scale)
	if math.IsInf(v, 0) || math.IsNaN(v) || v >= math.MaxInt {
		return 0, errors.New("value out of range")
	}
	return int(v), nil
}
