package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelemetrySampleIsZero(t *testing.T) {
	assert.True(t, TelemetrySample{}.IsZero())
	assert.False(t, TelemetrySample{SOCPercent: 1}.IsZero())
	assert.False(t, TelemetrySample{BatteryWatts: 10}.IsZero(), "battery watts count towards a real frame")
}

func TestDerivedMetricsExporting(t *testing.T) {
	assert.True(t, DerivedMetrics{SignedGridWatts: -200}.Exporting())
	assert.False(t, DerivedMetrics{SignedGridWatts: 0}.Exporting())
	assert.False(t, DerivedMetrics{SignedGridWatts: 50}.Exporting())
}

func TestMessageHandlePublished(t *testing.T) {
	assert.False(t, MessageHandle{ChannelRef: "hook"}.Published())
	assert.True(t, MessageHandle{ID: "123"}.Published())
}
