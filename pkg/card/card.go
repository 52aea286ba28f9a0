// Package card renders the messages posted to the chat channel: the live
// status card, the solar peak record and battery alerts.
package card

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/solarbot/solarbot/pkg/types"
)

// TimestampLayout is how times are shown in every message.
const TimestampLayout = "15:04 02/01/2006"

// WattsPerBlock is how many watts each block of a power bar stands for.
const WattsPerBlock = 100

// BatteryBarLength is the number of blocks in a full battery bar.
const BatteryBarLength = 15

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[0;1m"
	ansiWhite  = "\x1b[1;37m"
	ansiDim    = "\x1b[2m"
	colorGreen = "32"
	colorRed   = "31"
	colorAmber = "33"
	colorBlue  = "34"
)

// Blocks returns how many blocks represent magnitude. At least one block is
// always drawn so an idle meter is still visible.
func Blocks(magnitude, unitPerBlock int) int {
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if unitPerBlock <= 0 {
		return 1
	}
	return max(1, magnitude/unitPerBlock)
}

// BatteryBlocks returns the filled part of the battery bar, rounding up so
// any charge shows at least one block.
func BatteryBlocks(soc, length int) int {
	filled := int(math.Ceil(float64(soc) / 100 * float64(length)))
	return min(max(filled, 0), length)
}

func coloredBlocks(n int, color string) string {
	block := "\x1b[1;" + color + ";48m█" + ansiReset
	return strings.Repeat(block, n)
}

func powerLine(icon, label string, watts int, color string) string {
	bar := coloredBlocks(Blocks(watts, WattsPerBlock), color)
	return fmt.Sprintf("%s%s %-7s%s%4dW %s  %s", ansiBold, icon, label, ansiWhite, watts, ansiReset, bar)
}

func gridLine(signedWatts int) string {
	bar := coloredBlocks(Blocks(signedWatts, WattsPerBlock), colorAmber)
	var suffix string
	if signedWatts < 0 {
		suffix = " 🤑"
	}
	return fmt.Sprintf("%s🔌 Grid: %s%5dW %s  %s%s", ansiBold, ansiWhite, signedWatts, ansiReset, bar, suffix)
}

func batteryLine(s types.TelemetrySample, dir types.BatteryDirection) string {
	filled := BatteryBlocks(s.SOCPercent, BatteryBarLength)
	bar := coloredBlocks(filled, colorBlue) + strings.Repeat("░", BatteryBarLength-filled)
	return fmt.Sprintf(
		"%s🔋 Battery:%s%s%4d%%%s  %s %s @ %s%dW%s",
		ansiBold, ansiReset, ansiWhite, s.SOCPercent, ansiReset, bar, dir, ansiWhite, s.BatteryWatts, ansiReset,
	)
}

func mention(role string) string {
	if role == "" {
		return ""
	}
	return "<@&" + role + ">\n"
}

// Status renders the live status card inside an ansi code block so the
// channel shows the coloured bars.
func Status(role string, s types.TelemetrySample, d types.DerivedMetrics) string {
	var b strings.Builder
	b.WriteString(mention(role))
	b.WriteString("```ansi\n")
	b.WriteString(powerLine("☀️", "Solar:", s.PVWatts, colorGreen) + "\n")
	b.WriteString(powerLine("💡", "Load:", s.LoadWatts, colorRed) + "\n")
	b.WriteString(gridLine(d.SignedGridWatts) + "\n")
	b.WriteString(batteryLine(s, d.BatteryDirection) + "\n")
	b.WriteString(ansiDim + "Last Updated: " + s.Timestamp.Format(TimestampLayout) + ansiReset + "\n")
	b.WriteString("```")
	return b.String()
}

// HighBattery is the alert sent when the battery is almost full.
func HighBattery(role string, soc int) string {
	return mention(role) + "🔋 Battery is almost full! " + strconv.Itoa(soc) + "%⚡"
}

// LowBattery is the alert sent when the battery is running low.
func LowBattery(role string, soc int) string {
	return mention(role) + "🔋 LOW BATTERY!!! " + strconv.Itoa(soc) + "%⚠️"
}

// peakMarker starts the line carrying the peak wattage. ParsePeak matches it
// case-insensitively.
const peakMarker = "🌞 Solar Peak:"

// Peak renders the solar peak record.
func Peak(watts int, at time.Time) string {
	return fmt.Sprintf("%s %dW\n%s", peakMarker, watts, at.Format(TimestampLayout))
}

// ParsePeak reads the wattage and the time back out of a body produced by
// Peak. It returns false when no marker line is present or its value is
// unreadable. The time is read in the local zone from the line following the
// marker and is zero when missing or malformed.
func ParsePeak(body string) (int, time.Time, bool) {
	marker := strings.ToLower(peakMarker)
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		line = strings.ToLower(strings.TrimSpace(line))
		if !strings.HasPrefix(line, marker) {
			continue
		}
		num, _, _ := strings.Cut(line[len(marker):], "w")
		watts, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil || watts < 0 {
			return 0, time.Time{}, false
		}
		var at time.Time
		if i+1 < len(lines) {
			at, _ = time.ParseInLocation(TimestampLayout, strings.TrimSpace(lines[i+1]), time.Local)
		}
		return watts, at, true
	}
	return 0, time.Time{}, false
}
