package alert

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/solarbot/solarbot/pkg/card"
	"github.com/solarbot/solarbot/pkg/channel/channelmock"
	"github.com/solarbot/solarbot/pkg/log"
	"github.com/solarbot/solarbot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

func TestLatch(t *testing.T) {
	t.Run("High", func(t *testing.T) {
		l := NewHighLatch(95)
		assert.True(t, l.Armed())
		assert.False(t, l.Observe(90))
		assert.True(t, l.Observe(95), "threshold is inclusive")
		assert.False(t, l.Armed())
		assert.False(t, l.Observe(100))
		assert.False(t, l.Observe(95))
		assert.False(t, l.Observe(94))
		assert.True(t, l.Armed())
		assert.True(t, l.Observe(96))
	})

	t.Run("Low", func(t *testing.T) {
		l := NewLowLatch(20)
		assert.False(t, l.Observe(21))
		assert.True(t, l.Observe(20))
		assert.False(t, l.Observe(5))
		assert.False(t, l.Observe(20), "still low, no re-arm")
		assert.False(t, l.Observe(21))
		assert.True(t, l.Observe(19))
	})
}

func TestEngine(t *testing.T) {
	ctx := context.Background()
	cfg := Config{HighSOC: DefaultHighSOC, LowSOC: DefaultLowSOC, Role: "7"}

	run := func(e *Engine, socs ...int) []Kind {
		var all []Kind
		for _, soc := range socs {
			all = append(all, e.Evaluate(ctx, types.TelemetrySample{SOCPercent: soc})...)
		}
		return all
	}

	t.Run("High Hysteresis", func(t *testing.T) {
		ch := &channelmock.MockChannel{}
		ch.On("Send", mock.Anything, mock.Anything).Return(nil)
		e := NewEngine(ch, cfg)

		fired := run(e, 90, 96, 94, 97)
		assert.Equal(t, []Kind{KindHighBattery, KindHighBattery}, fired)
		ch.AssertNumberOfCalls(t, "Send", 2)
		ch.AssertCalled(t, "Send", mock.Anything, card.HighBattery("7", 96))
		ch.AssertCalled(t, "Send", mock.Anything, card.HighBattery("7", 97))
	})

	t.Run("Low Hysteresis", func(t *testing.T) {
		ch := &channelmock.MockChannel{}
		ch.On("Send", mock.Anything, mock.Anything).Return(nil)
		e := NewEngine(ch, cfg)

		fired := run(e, 30, 20, 15, 10, 25, 18)
		assert.Equal(t, []Kind{KindLowBattery, KindLowBattery}, fired)
		ch.AssertCalled(t, "Send", mock.Anything, card.LowBattery("7", 20))
		ch.AssertCalled(t, "Send", mock.Anything, card.LowBattery("7", 18))
	})

	t.Run("Independent Latches", func(t *testing.T) {
		ch := &channelmock.MockChannel{}
		ch.On("Send", mock.Anything, mock.Anything).Return(nil)
		e := NewEngine(ch, cfg)

		assert.Equal(t, []Kind{KindHighBattery}, run(e, 99))
		assert.Equal(t, types.AlertState{HighArmed: false, LowArmed: true}, e.State())
		assert.Equal(t, []Kind{KindLowBattery}, run(e, 10))
		assert.Equal(t, types.AlertState{HighArmed: true, LowArmed: false}, e.State())
	})

	t.Run("Failed Delivery Still Disarms", func(t *testing.T) {
		ch := &channelmock.MockChannel{}
		ch.On("Send", mock.Anything, mock.Anything).Return(errors.New("webhook down"))
		e := NewEngine(ch, cfg)

		assert.Equal(t, []Kind{KindHighBattery}, run(e, 96, 97, 98))
		ch.AssertNumberOfCalls(t, "Send", 1)
		assert.False(t, e.State().HighArmed)
	})

	t.Run("Quiet In Between", func(t *testing.T) {
		ch := &channelmock.MockChannel{}
		e := NewEngine(ch, cfg)
		assert.Empty(t, run(e, 50, 60, 21, 94))
		ch.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}
