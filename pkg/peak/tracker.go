package peak

import (
	"context"
	"log/slog"

	"github.com/solarbot/solarbot/pkg/card"
	"github.com/solarbot/solarbot/pkg/log"
	"github.com/solarbot/solarbot/pkg/types"
)

// Message is the remote message the peak is displayed in. It is satisfied by
// *message.Manager.
type Message interface {
	Publish(ctx context.Context, content string) error
	Fetch(ctx context.Context) (string, error)
	Handle() types.MessageHandle
}

// Tracker remembers the highest solar generation seen. The peak message
// itself is the source of truth: it is read back once per run, after which
// the in-memory record only ever grows.
type Tracker struct {
	msg      Message
	restored bool
	record   types.PeakRecord
}

// NewTracker returns a Tracker displaying its record in msg.
func NewTracker(msg Message) *Tracker {
	return &Tracker{msg: msg}
}

// Record returns the current peak.
func (t *Tracker) Record() types.PeakRecord {
	return t.record
}

// Observe compares the sample's solar power against the peak. Only a
// strictly higher value updates the record and the remote message; the
// returned bool reports whether that happened. An error means the record
// advanced but the message could not be updated.
func (t *Tracker) Observe(ctx context.Context, s types.TelemetrySample) (bool, error) {
	if !t.restored {
		t.restore(ctx)
	}

	if s.PVWatts <= t.record.Watts {
		return false, nil
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"new solar peak",
		slog.Int("watts", s.PVWatts),
		slog.Int("previousWatts", t.record.Watts),
	)
	t.record.Watts = s.PVWatts
	t.record.Timestamp = s.Timestamp

	err := t.msg.Publish(ctx, card.Peak(s.PVWatts, s.Timestamp))
	t.record.Message = t.msg.Handle()
	return true, err
}

// restore reads the previous peak out of the remote message. Any failure
// leaves the peak at zero.
func (t *Tracker) restore(ctx context.Context) {
	t.restored = true
	t.record.Message = t.msg.Handle()
	if !t.record.Message.Published() {
		return
	}

	body, err := t.msg.Fetch(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "couldn't fetch peak message, assuming 0W", slog.Any("error", err))
		return
	}
	watts, at, ok := card.ParsePeak(body)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "couldn't find peak in message, assuming 0W", slog.String("id", t.record.Message.ID))
		return
	}
	t.record.Watts = watts
	t.record.Timestamp = at
	log.Ctx(ctx).DebugContext(ctx, "restored solar peak", slog.Int("watts", watts))
}
