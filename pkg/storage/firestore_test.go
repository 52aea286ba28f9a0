package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreStore(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// Use a random database for isolation
	f := &FirestoreStore{
		projectID: "test-project-id",
		database:  fmt.Sprintf("test-db-%d", time.Now().UnixNano()),
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Missing", func(t *testing.T) {
		v, err := f.Get(ctx, "MESSAGE_ID")
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("Set And Get", func(t *testing.T) {
		require.NoError(t, f.Set(ctx, "MESSAGE_ID", "111"))
		require.NoError(t, f.Set(ctx, "PEAK_MESSAGE_ID", "222"))
		require.NoError(t, f.Set(ctx, "MESSAGE_ID", "333"))

		v, err := f.Get(ctx, "MESSAGE_ID")
		require.NoError(t, err)
		assert.Equal(t, "333", v)

		v, err = f.Get(ctx, "PEAK_MESSAGE_ID")
		require.NoError(t, err)
		assert.Equal(t, "222", v, "merge should keep other keys")
	})
}
