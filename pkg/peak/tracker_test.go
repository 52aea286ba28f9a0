package peak

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/solarbot/solarbot/pkg/card"
	"github.com/solarbot/solarbot/pkg/channel"
	"github.com/solarbot/solarbot/pkg/channel/channelmock"
	"github.com/solarbot/solarbot/pkg/log"
	"github.com/solarbot/solarbot/pkg/message"
	"github.com/solarbot/solarbot/pkg/storage/storagemock"
	"github.com/solarbot/solarbot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

var base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func sample(pv int, minute int) types.TelemetrySample {
	return types.TelemetrySample{PVWatts: pv, SOCPercent: 50, Timestamp: base.Add(time.Duration(minute) * time.Minute)}
}

func newTracker(t *testing.T, storedID string) (*Tracker, *channelmock.MockChannel, *storagemock.MockStore) {
	t.Helper()
	ch := &channelmock.MockChannel{}
	st := &storagemock.MockStore{}
	st.On("Get", mock.Anything, types.PeakMessageIDKey).Return(storedID, nil).Once()
	m, err := message.NewManager(context.Background(), ch, st, types.PeakMessageIDKey)
	require.NoError(t, err)
	return NewTracker(m), ch, st
}

func TestTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("Running Maximum", func(t *testing.T) {
		tr, ch, _ := newTracker(t, "p1")
		ch.On("Get", mock.Anything, "p1").Return("🌞 Solar Peak: 150W\n09:00 01/06/2025", nil).Once()
		ch.On("Edit", mock.Anything, "p1", mock.Anything).Return(nil)

		readings := []int{100, 300, 200, 300, 500, 0}
		var advanced []bool
		for i, pv := range readings {
			ok, err := tr.Observe(ctx, sample(pv, i))
			require.NoError(t, err)
			advanced = append(advanced, ok)
			assert.GreaterOrEqual(t, tr.Record().Watts, 150, "peak must never regress")
		}

		assert.Equal(t, []bool{false, true, false, false, true, false}, advanced)
		assert.Equal(t, 500, tr.Record().Watts)
		assert.Equal(t, base.Add(4*time.Minute), tr.Record().Timestamp)
		assert.Equal(t, "p1", tr.Record().Message.ID)

		ch.AssertNumberOfCalls(t, "Get", 1)
		ch.AssertNumberOfCalls(t, "Edit", 2)
		ch.AssertCalled(t, "Edit", mock.Anything, "p1", card.Peak(300, base.Add(1*time.Minute)))
		ch.AssertCalled(t, "Edit", mock.Anything, "p1", card.Peak(500, base.Add(4*time.Minute)))
	})

	t.Run("Restores Peak Time", func(t *testing.T) {
		tr, ch, _ := newTracker(t, "p1")
		ch.On("Get", mock.Anything, "p1").Return("🌞 Solar Peak: 900W\n13:45 02/06/2025", nil).Once()

		ok, err := tr.Observe(ctx, sample(100, 0))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 900, tr.Record().Watts)
		assert.Equal(t, "13:45 02/06/2025", tr.Record().Timestamp.Format(card.TimestampLayout))
	})

	t.Run("Same Value Is Idempotent", func(t *testing.T) {
		tr, ch, _ := newTracker(t, "p1")
		ch.On("Get", mock.Anything, "p1").Return("🌞 Solar Peak: 400W", nil).Once()

		for i := 0; i < 3; i++ {
			ok, err := tr.Observe(ctx, sample(400, i))
			require.NoError(t, err)
			assert.False(t, ok)
		}
		ch.AssertNotCalled(t, "Edit", mock.Anything, mock.Anything, mock.Anything)
		ch.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Fetch Failure Assumes Zero", func(t *testing.T) {
		tr, ch, _ := newTracker(t, "p1")
		ch.On("Get", mock.Anything, "p1").Return("", &channel.HTTPError{StatusCode: 404}).Once()
		ch.On("Edit", mock.Anything, "p1", mock.Anything).Return(nil).Once()

		ok, err := tr.Observe(ctx, sample(20, 0))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 20, tr.Record().Watts)
	})

	t.Run("Unparsable Body Assumes Zero", func(t *testing.T) {
		tr, ch, _ := newTracker(t, "p1")
		ch.On("Get", mock.Anything, "p1").Return("someone edited me", nil).Once()
		ch.On("Edit", mock.Anything, "p1", mock.Anything).Return(nil).Once()

		ok, err := tr.Observe(ctx, sample(5, 0))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("No Stored Message", func(t *testing.T) {
		tr, ch, st := newTracker(t, "")
		ch.On("Create", mock.Anything, card.Peak(900, base)).Return("p9", nil).Once()
		st.On("Set", mock.Anything, types.PeakMessageIDKey, "p9").Return(nil).Once()

		ok, err := tr.Observe(ctx, sample(900, 0))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "p9", tr.Record().Message.ID)
		ch.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		st.AssertExpectations(t)
	})

	t.Run("Zero Reading Without Message", func(t *testing.T) {
		tr, ch, _ := newTracker(t, "")
		ok, err := tr.Observe(ctx, sample(0, 0))
		require.NoError(t, err)
		assert.False(t, ok)
		ch.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Edit Failure Recreates", func(t *testing.T) {
		tr, ch, st := newTracker(t, "p1")
		ch.On("Get", mock.Anything, "p1").Return("🌞 Solar Peak: 100W", nil).Once()
		ch.On("Edit", mock.Anything, "p1", mock.Anything).Return(&channel.HTTPError{StatusCode: 404}).Once()
		ch.On("Create", mock.Anything, mock.Anything).Return("p2", nil).Once()
		st.On("Set", mock.Anything, types.PeakMessageIDKey, "p2").Return(nil).Once()

		ok, err := tr.Observe(ctx, sample(200, 0))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "p2", tr.Record().Message.ID)
		ch.AssertNumberOfCalls(t, "Create", 1)
		st.AssertExpectations(t)
	})

	t.Run("Publish Failure Keeps Record", func(t *testing.T) {
		tr, ch, _ := newTracker(t, "")
		ch.On("Create", mock.Anything, mock.Anything).Return("", errors.New("offline")).Once()

		ok, err := tr.Observe(ctx, sample(700, 0))
		assert.True(t, ok)
		assert.Error(t, err)
		assert.Equal(t, 700, tr.Record().Watts)

		// a lower reading afterwards doesn't touch the channel
		ok, err = tr.Observe(ctx, sample(600, 1))
		require.NoError(t, err)
		assert.False(t, ok)
		ch.AssertNumberOfCalls(t, "Create", 1)
	})
}
