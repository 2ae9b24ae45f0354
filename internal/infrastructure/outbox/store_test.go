package outbox

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "outbox.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreDueOrdering(t *testing.T) {
	store := openStore(t)
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Enqueue(Item{ID: "late", Entity: EntityNotification, NextAttempt: now.Add(time.Hour)}))
	require.NoError(t, store.Enqueue(Item{ID: "second", Entity: EntityAttachment, NextAttempt: now.Add(-time.Minute)}))
	require.NoError(t, store.Enqueue(Item{ID: "first", Entity: EntityAttachment, NextAttempt: now.Add(-time.Hour)}))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	due, err := store.Due(now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "first", due[0].ID)
	assert.Equal(t, "second", due[1].ID)

	limited, err := store.Due(now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStoreRescheduleAndRemove(t *testing.T) {
	store := openStore(t)
	now := time.Now()

	require.NoError(t, store.Enqueue(Item{ID: "a", Entity: EntityAttachment, Data: []byte(`{"id":"f1"}`), NextAttempt: now}))
	due, err := store.Due(now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, store.Reschedule(due[0], now.Add(time.Hour), errors.New("timeout")))

	due, err = store.Due(now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	later, err := store.Due(now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, 1, later[0].Retries)
	assert.Equal(t, "timeout", later[0].LastError)
	assert.JSONEq(t, `{"id":"f1"}`, string(later[0].Data))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	require.NoError(t, store.Remove(later[0]))
	size, err = store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestStoreCleanup(t *testing.T) {
	store := openStore(t)
	now := time.Now()

	require.NoError(t, store.Enqueue(Item{ID: "old", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Enqueue(Item{ID: "fresh", CreatedAt: now}))

	removed, err := store.Cleanup(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	due, err := store.Due(now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "fresh", due[0].ID)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")

	store, err := Open(path, "outbox")
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(Item{ID: "kept", Entity: EntityNotification}))
	require.NoError(t, store.Close())

	reopened, err := Open(path, "outbox")
	require.NoError(t, err)
	defer reopened.Close()

	size, err := reopened.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}
