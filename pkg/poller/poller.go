// Package poller drives the bot: every cycle it reads the dashboard, turns
// the reading into a sample and hands it to the status message, the peak
// tracker and the battery alerts.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"github.com/solarbot/solarbot/pkg/alert"
	"github.com/solarbot/solarbot/pkg/card"
	"github.com/solarbot/solarbot/pkg/channel"
	"github.com/solarbot/solarbot/pkg/log"
	"github.com/solarbot/solarbot/pkg/message"
	"github.com/solarbot/solarbot/pkg/peak"
	"github.com/solarbot/solarbot/pkg/source"
	"github.com/solarbot/solarbot/pkg/storage"
	"github.com/solarbot/solarbot/pkg/telemetry"
	"github.com/solarbot/solarbot/pkg/types"
)

// Config controls the poll loop.
type Config struct {
	PollInterval    time.Duration
	ReauthBackoff   time.Duration
	ExportGuardBand int
	HighSOC         int
	LowSOC          int
	Role            string
}

// Snapshot is the outcome of the last completed cycle.
type Snapshot struct {
	Sample    types.TelemetrySample `json:"sample"`
	Derived   types.DerivedMetrics  `json:"derived"`
	Peak      types.PeakRecord      `json:"peak"`
	Alerts    types.AlertState      `json:"alerts"`
	Status    types.MessageHandle   `json:"status"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Poller runs the poll loop. Only the goroutine calling Run touches the
// message, peak and alert state; Snapshot may be called from anywhere.
type Poller struct {
	src   source.Source
	ch    channel.Channel
	store storage.Store
	cfg   Config
	now   func() time.Time

	status  *message.Manager
	tracker *peak.Tracker
	alerts  *alert.Engine

	snapshot atomic.Pointer[Snapshot]
}

// Configured registers the poller's flags and returns a Poller reading from
// src and posting to ch.
func Configured(src source.Source, ch channel.Channel, store storage.Store) *Poller {
	pollInterval := lflag.Duration("poll-interval", time.Minute, "How long to wait between readings")
	reauthBackoff := lflag.Duration("reauth-backoff", time.Minute, "How long to wait before retrying a failed reading or login")
	guardBand := lflag.Int("export-guard-band", telemetry.DefaultExportGuardBand, "Watts of surplus required before the grid reading counts as export")
	highSOC := lflag.Int("alert-high-soc", alert.DefaultHighSOC, "Battery percentage at which to alert that it's almost full")
	lowSOC := lflag.Int("alert-low-soc", alert.DefaultLowSOC, "Battery percentage at which to alert that it's low")
	role := lflag.String("discord-role", os.Getenv("SOLAR_ROLE"), "Discord role id to mention in cards and alerts")

	p := New(src, ch, store, Config{})

	lflag.Do(func() {
		if *pollInterval <= 0 {
			panic("poll-interval must be positive")
		}
		if *highSOC <= *lowSOC {
			panic(fmt.Sprintf("alert-high-soc (%d) must be above alert-low-soc (%d)", *highSOC, *lowSOC))
		}
		p.cfg = Config{
			PollInterval:    *pollInterval,
			ReauthBackoff:   *reauthBackoff,
			ExportGuardBand: *guardBand,
			HighSOC:         *highSOC,
			LowSOC:          *lowSOC,
			Role:            *role,
		}
	})

	return p
}

// New returns a Poller with the given configuration.
func New(src source.Source, ch channel.Channel, store storage.Store, cfg Config) *Poller {
	return &Poller{
		src:   src,
		ch:    ch,
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Snapshot returns the result of the last completed cycle, if there was one.
func (p *Poller) Snapshot() (Snapshot, bool) {
	s := p.snapshot.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Run polls until ctx is cancelled. Restoring the message ids and the first
// login are retried like a failed reading. A cycle that has started is
// finished before Run returns; cancellation only interrupts the waits
// between attempts and cycles. The source session is closed on return.
func (p *Poller) Run(ctx context.Context) error {
	defer func() {
		if err := p.src.Close(); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to close source", slog.Any("error", err))
		}
	}()

	if err := p.retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.init(context.WithoutCancel(ctx))
	}); err != nil {
		return nil
	}

	if err := p.retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.src.Authenticate(context.WithoutCancel(ctx))
	}); err != nil {
		return nil
	}

	log.Ctx(ctx).InfoContext(ctx, "polling started", slog.Duration("interval", p.cfg.PollInterval))
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "polling stopped")
			return nil
		case <-timer.C:
		}

		if err := p.cycle(ctx); err != nil {
			log.Ctx(ctx).InfoContext(ctx, "polling stopped")
			return nil
		}
		timer.Reset(p.cfg.PollInterval)
	}
}

func (p *Poller) init(ctx context.Context) error {
	status, err := message.NewManager(ctx, p.ch, p.store, types.MessageIDKey)
	if err != nil {
		return fmt.Errorf("failed to set up status message: %w", err)
	}
	peakMsg, err := message.NewManager(ctx, p.ch, p.store, types.PeakMessageIDKey)
	if err != nil {
		return fmt.Errorf("failed to set up peak message: %w", err)
	}
	p.status = status
	p.tracker = peak.NewTracker(peakMsg)
	p.alerts = alert.NewEngine(p.ch, alert.Config{
		HighSOC: p.cfg.HighSOC,
		LowSOC:  p.cfg.LowSOC,
		Role:    p.cfg.Role,
	})
	return nil
}

// cycle acquires one reading and processes it. It only returns an error
// when ctx was cancelled while waiting to retry the acquisition.
func (p *Poller) cycle(ctx context.Context) error {
	ctx = log.WithAttrs(ctx, slog.String("cycle", uuid.NewString()))
	work := context.WithoutCancel(ctx)

	var fields types.RawFields
	err := p.retry(ctx, func() (struct{}, error) {
		var err error
		fields, err = p.acquire(work)
		return struct{}{}, err
	})
	if err != nil {
		return err
	}
	p.process(work, fields)
	return nil
}

// acquire reads the dashboard, logging in again once if the read fails.
func (p *Poller) acquire(ctx context.Context) (types.RawFields, error) {
	fields, err := p.src.ReadFields(ctx)
	if err == nil {
		return fields, nil
	}
	if errors.Is(err, source.ErrSessionExpired) {
		log.Ctx(ctx).InfoContext(ctx, "session expired, logging in again")
	} else {
		log.Ctx(ctx).WarnContext(ctx, "failed to read dashboard, logging in again", slog.Any("error", err))
	}

	if err := p.src.Authenticate(ctx); err != nil {
		return types.RawFields{}, fmt.Errorf("failed to log in: %w", err)
	}
	fields, err = p.src.ReadFields(ctx)
	if err != nil {
		return types.RawFields{}, fmt.Errorf("failed to read dashboard after login: %w", err)
	}
	return fields, nil
}

// retry calls op until it succeeds, waiting ReauthBackoff between attempts.
// It is used for the source and for restoring the message ids.
// It gives up only when ctx is cancelled.
func (p *Poller) retry(ctx context.Context, op func() (struct{}, error)) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(p.cfg.ReauthBackoff), ctx)
	_, err := backoff.RetryNotifyWithData(op, b, func(err error, wait time.Duration) {
		log.Ctx(ctx).ErrorContext(ctx, "attempt failed, backing off", slog.Any("error", err), slog.Duration("wait", wait))
	})
	return err
}

func (p *Poller) process(ctx context.Context, fields types.RawFields) {
	sample, err := telemetry.Parse(fields, p.now())
	if errors.Is(err, telemetry.ErrSentinelFrame) {
		log.Ctx(ctx).WarnContext(ctx, "dashboard returned all zeros, skipping")
		return
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to parse dashboard", slog.Any("error", err))
		return
	}

	derived := telemetry.Derive(sample, p.cfg.ExportGuardBand)
	log.Ctx(ctx).DebugContext(
		ctx,
		"sample",
		slog.Int("pvW", sample.PVWatts),
		slog.Int("loadW", sample.LoadWatts),
		slog.Int("gridW", derived.SignedGridWatts),
		slog.Int("batteryW", sample.BatteryWatts),
		slog.Int("soc", sample.SOCPercent),
		slog.String("battery", string(derived.BatteryDirection)),
	)

	if err := p.status.Publish(ctx, card.Status(p.cfg.Role, sample, derived)); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to publish status", slog.Any("error", err))
	}
	if _, err := p.tracker.Observe(ctx, sample); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to publish peak", slog.Any("error", err))
	}
	p.alerts.Evaluate(ctx, sample)

	p.snapshot.Store(&Snapshot{
		Sample:    sample,
		Derived:   derived,
		Peak:      p.tracker.Record(),
		Alerts:    p.alerts.State(),
		Status:    p.status.Handle(),
		UpdatedAt: sample.Timestamp,
	})
}
