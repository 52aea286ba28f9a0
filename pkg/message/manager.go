// Package message owns the lifecycle of a single message on the channel:
// it edits the message in place while it exists and recreates it, storing
// the new id, once it is gone.
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/solarbot/solarbot/pkg/channel"
	"github.com/solarbot/solarbot/pkg/log"
	"github.com/solarbot/solarbot/pkg/storage"
	"github.com/solarbot/solarbot/pkg/types"
)

// ErrNotPublished is returned by Fetch when no message has been created yet.
var ErrNotPublished = errors.New("message not published")

// Manager keeps one remote message up to date. It is not safe for
// concurrent use; the poller is its only caller.
type Manager struct {
	ch     channel.Channel
	store  storage.Store
	key    string
	handle types.MessageHandle
}

// NewManager restores the id stored under key, if any, so a restarted
// process keeps editing the same message. When the store has nothing the
// environment variable named key is used.
func NewManager(ctx context.Context, ch channel.Channel, store storage.Store, key string) (*Manager, error) {
	id, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if id == "" {
		id = os.Getenv(key)
	}
	m := &Manager{
		ch:    ch,
		store: store,
		key:   key,
		handle: types.MessageHandle{
			ID:         id,
			ChannelRef: ch.Ref(),
		},
	}
	log.Ctx(ctx).DebugContext(ctx, "message manager restored", slog.String("key", key), slog.String("id", id))
	return m, nil
}

// Handle returns the current identity of the message.
func (m *Manager) Handle() types.MessageHandle {
	return m.handle
}

// Publish shows content on the channel. An existing message is edited; if
// that fails for any reason a new message is created and its id stored.
// A failed create leaves the manager as it was and is not retried.
func (m *Manager) Publish(ctx context.Context, content string) error {
	if m.handle.Published() {
		err := m.ch.Edit(ctx, m.handle.ID, content)
		if err == nil {
			return nil
		}
		log.Ctx(ctx).WarnContext(
			ctx,
			"failed to edit message, creating a new one",
			slog.String("key", m.key),
			slog.String("id", m.handle.ID),
			slog.Any("error", err),
		)
	}
	return m.create(ctx, content)
}

func (m *Manager) create(ctx context.Context, content string) error {
	id, err := m.ch.Create(ctx, content)
	if err != nil {
		var fe *channel.FormatError
		if errors.As(err, &fe) {
			log.Ctx(ctx).ErrorContext(
				ctx,
				"message created but its id is unreadable, update the stored id manually",
				slog.String("key", m.key),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("failed to create message: %w", err)
	}

	old := m.handle.ID
	m.handle.ID = id
	log.Ctx(ctx).InfoContext(
		ctx,
		"created new message",
		slog.String("key", m.key),
		slog.String("id", id),
		slog.String("previousID", old),
	)

	if err := m.store.Set(ctx, m.key, id); err != nil {
		return fmt.Errorf("failed to store %s=%s: %w", m.key, id, err)
	}
	return nil
}

// Fetch returns the current content of the remote message.
func (m *Manager) Fetch(ctx context.Context) (string, error) {
	if !m.handle.Published() {
		return "", ErrNotPublished
	}
	return m.ch.Get(ctx, m.handle.ID)
}
