package checkpoint

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	saved := Snapshot{
		RunID:     "run-1",
		SessionID: "session-1",
		Phase:     "researching",
		SavedAt:   time.Now().UTC(),
		State:     json.RawMessage(`{"tasks":["a","b"]}`),
	}
	require.NoError(t, store.Save(ctx, saved))

	got, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "researching", got.Phase)
	assert.Equal(t, "run-1", got.RunID)
	assert.JSONEq(t, `{"tasks":["a","b"]}`, string(got.State))
}

func TestMemoryStoreOverwrites(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{RunID: "run-1", SessionID: "session-1", Phase: "planning"}))
	require.NoError(t, store.Save(ctx, Snapshot{RunID: "run-1", SessionID: "session-1", Phase: "writing"}))

	got, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "writing", got.Phase, "latest snapshot wins")
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore(time.Minute)

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{RunID: "run-1", SessionID: "session-1", Phase: "planning"}))
	require.NoError(t, store.Delete(ctx, "session-1"))

	_, err := store.Load(ctx, "session-1")
	assert.ErrorIs(t, err, ErrNotFound, "snapshot must not survive delete")
}
