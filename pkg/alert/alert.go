package alert

import (
	"context"
	"log/slog"

	"github.com/solarbot/solarbot/pkg/card"
	"github.com/solarbot/solarbot/pkg/log"
	"github.com/solarbot/solarbot/pkg/types"
)

const (
	// DefaultHighSOC is the charge at or above which the battery counts as
	// almost full.
	DefaultHighSOC = 95
	// DefaultLowSOC is the charge at or below which the battery counts as low.
	DefaultLowSOC = 20
)

// Kind names an alert.
type Kind string

const (
	KindHighBattery Kind = "highBattery"
	KindLowBattery  Kind = "lowBattery"
)

// Notifier delivers an alert. It is satisfied by channel.Channel.
type Notifier interface {
	Send(ctx context.Context, content string) error
}

// Latch fires once when its threshold is crossed and stays quiet until the
// value has left the threshold again.
type Latch struct {
	threshold int
	above     bool
	armed     bool
}

// NewHighLatch returns an armed latch that fires at soc >= threshold.
func NewHighLatch(threshold int) *Latch {
	return &Latch{threshold: threshold, above: true, armed: true}
}

// NewLowLatch returns an armed latch that fires at soc <= threshold.
func NewLowLatch(threshold int) *Latch {
	return &Latch{threshold: threshold, armed: true}
}

// Armed reports whether the latch will fire on the next breach.
func (l *Latch) Armed() bool {
	return l.armed
}

// Observe feeds a value to the latch and reports whether it fired.
func (l *Latch) Observe(v int) bool {
	breached := v <= l.threshold
	if l.above {
		breached = v >= l.threshold
	}
	if !breached {
		l.armed = true
		return false
	}
	if !l.armed {
		return false
	}
	l.armed = false
	return true
}

// Config holds the alert thresholds and who to mention.
type Config struct {
	HighSOC int
	LowSOC  int
	Role    string
}

// Engine evaluates the battery alerts for every sample.
type Engine struct {
	notifier Notifier
	role     string
	high     *Latch
	low      *Latch
}

// NewEngine returns an Engine with both alerts armed.
func NewEngine(n Notifier, cfg Config) *Engine {
	return &Engine{
		notifier: n,
		role:     cfg.Role,
		high:     NewHighLatch(cfg.HighSOC),
		low:      NewLowLatch(cfg.LowSOC),
	}
}

// State returns which alerts are currently armed.
func (e *Engine) State() types.AlertState {
	return types.AlertState{
		HighArmed: e.high.Armed(),
		LowArmed:  e.low.Armed(),
	}
}

// Evaluate runs both latches against the sample and sends an alert for each
// one that fires. A failed delivery is logged and still counts as fired so a
// broken channel doesn't cause a flood of retries.
func (e *Engine) Evaluate(ctx context.Context, s types.TelemetrySample) []Kind {
	var fired []Kind
	if e.high.Observe(s.SOCPercent) {
		e.send(ctx, KindHighBattery, card.HighBattery(e.role, s.SOCPercent), s.SOCPercent)
		fired = append(fired, KindHighBattery)
	}
	if e.low.Observe(s.SOCPercent) {
		e.send(ctx, KindLowBattery, card.LowBattery(e.role, s.SOCPercent), s.SOCPercent)
		fired = append(fired, KindLowBattery)
	}
	return fired
}

func (e *Engine) send(ctx context.Context, kind Kind, content string, soc int) {
	log.Ctx(ctx).InfoContext(ctx, "battery alert", slog.String("kind", string(kind)), slog.Int("soc", soc))
	if err := e.notifier.Send(ctx, content); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to send battery alert", slog.String("kind", string(kind)), slog.Any("error", err))
	}
}
