package badger

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, clock *fakeClock) (*SnapshotStore, *Backend) {
	t.Helper()
	store, backend, err := NewMemorySnapshotStore(WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() {
		if !backend.IsClosed() {
			backend.Close()
		}
	})
	return store, backend
}

func entry(id string, fp core.Fingerprint) core.CacheEntry {
	return core.CacheEntry{
		RecordID:    id,
		Fingerprint: fp,
		Embeddings: core.EmbeddingSet{
			core.SlotCombined: {0.25, 0.5},
			core.SlotTitle:    {1, 0},
		},
	}
}

func TestSnapshotStore_Empty(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, newFakeClock())

	assert.False(t, store.IsValid(ctx))
	_, ok := store.Load(ctx)
	assert.False(t, ok)
	_, ok = store.Age(ctx)
	assert.False(t, ok)

	_, err := store.Peek(ctx)
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store, _ := newTestStore(t, clock)

	entries := map[string]core.CacheEntry{
		"A1": entry("A1", "fp1"),
		"B2": entry("B2", "fp2"),
	}
	store.Save(ctx, entries)

	assert.True(t, store.IsValid(ctx))

	snap, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, entries, snap.Entries)
	assert.True(t, clock.Now().Equal(snap.CreatedAt))

	age, ok := store.Age(ctx)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), age)
}

func TestSnapshotStore_SaveLoadLargeInMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("large snapshot")
	}
	ctx := context.Background()
	store, backend := newTestStore(t, newFakeClock())

	// Random vectors barely compress, so the encoded snapshot is well past
	// the default memtable's batch limit.
	rng := rand.New(rand.NewPCG(1, 2))
	entries := make(map[string]core.CacheEntry, 3000)
	for i := range 3000 {
		id := fmt.Sprintf("R%04d", i)
		vec := make(core.Vector, 1536)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		entries[id] = core.CacheEntry{
			RecordID:    id,
			Fingerprint: core.Fingerprint("fp" + id),
			Embeddings:  core.EmbeddingSet{core.SlotCombined: vec},
		}
	}
	data, err := storage.MarshalSnapshotEntries(entries)
	require.NoError(t, err)
	require.Greater(t, len(data), 10<<20)

	store.Save(ctx, entries)

	snap, ok := store.Load(ctx)
	require.True(t, ok, "large snapshot must be saved")
	assert.Len(t, snap.Entries, len(entries))
	assert.Equal(t, entries["R0042"], snap.Entries["R0042"])

	// A smaller save drops the chunks it no longer needs.
	store.Save(ctx, map[string]core.CacheEntry{"A1": entry("A1", "fp1")})
	snap, ok = store.Load(ctx)
	require.True(t, ok)
	assert.Len(t, snap.Entries, 1)
	assert.Equal(t, 1, countChunks(t, backend))
}

func countChunks(t *testing.T, backend *Backend) int {
	t.Helper()
	n := 0
	err := backend.WithTx(func(tx *badger.Txn) error {
		it := tx.NewIterator(badger.IteratorOptions{Prefix: snapshotChunkKeyP})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	}, false)
	require.NoError(t, err)
	return n
}

func TestSnapshotStore_ExpiresAtomically(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store, _ := newTestStore(t, clock)

	store.Save(ctx, map[string]core.CacheEntry{"A1": entry("A1", "fp1")})

	clock.Advance(29*time.Minute + 59*time.Second)
	assert.True(t, store.IsValid(ctx))
	_, ok := store.Load(ctx)
	assert.True(t, ok)

	clock.Advance(time.Second)
	assert.False(t, store.IsValid(ctx))
	_, ok = store.Load(ctx)
	assert.False(t, ok, "snapshot is invalid at exactly the max age")

	snap, err := store.Peek(ctx)
	require.NoError(t, err, "peek ignores expiry")
	assert.Len(t, snap.Entries, 1)
}

func TestSnapshotStore_SaveResetsTimestamp(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store, _ := newTestStore(t, clock)

	store.Save(ctx, map[string]core.CacheEntry{"A1": entry("A1", "fp1")})
	clock.Advance(45 * time.Minute)
	require.False(t, store.IsValid(ctx))

	store.Save(ctx, map[string]core.CacheEntry{"B2": entry("B2", "fp2")})
	assert.True(t, store.IsValid(ctx))

	snap, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Contains(t, snap.Entries, "B2")
	assert.NotContains(t, snap.Entries, "A1", "save replaces the whole snapshot")
}

func TestSnapshotStore_CustomMaxAge(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store, backend, err := NewMemorySnapshotStore(WithClock(clock.Now), WithMaxAge(time.Minute))
	require.NoError(t, err)
	defer backend.Close()

	assert.Equal(t, time.Minute, store.MaxAge())
	store.Save(ctx, map[string]core.CacheEntry{"A1": entry("A1", "fp1")})
	clock.Advance(time.Minute)
	assert.False(t, store.IsValid(ctx))
}

func TestSnapshotStore_DropsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, newFakeClock())

	store.Save(ctx, map[string]core.CacheEntry{
		"A1": entry("A1", "fp1"),
		"B2": {RecordID: "B2", Fingerprint: "fp2", Embeddings: core.EmbeddingSet{core.SlotTitle: {1}}},
		"C3": {RecordID: "C3", Embeddings: core.EmbeddingSet{core.SlotCombined: {1}}},
	})

	snap, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Len(t, snap.Entries, 1)
	assert.Contains(t, snap.Entries, "A1")
}

func TestSnapshotStore_DoesNotCheckFingerprints(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, newFakeClock())

	store.Save(ctx, map[string]core.CacheEntry{"A1": entry("A1", "stale-fingerprint")})

	snap, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, core.Fingerprint("stale-fingerprint"), snap.Entries["A1"].Fingerprint)
}

func TestSnapshotStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, newFakeClock())

	store.Save(ctx, map[string]core.CacheEntry{"A1": entry("A1", "fp1")})
	require.True(t, store.IsValid(ctx))

	require.NoError(t, store.Clear(ctx))
	assert.False(t, store.IsValid(ctx))
	_, ok := store.Load(ctx)
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx), "clearing twice is fine")
}

func TestSnapshotStore_IncompleteSnapshot(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	t.Run("timestamp only", func(t *testing.T) {
		store, backend := newTestStore(t, clock)
		writeKey(t, backend, snapshotTimeKey, storage.MarshalTimestamp(clock.Now()))

		assert.False(t, store.IsValid(ctx))
		_, ok := store.Load(ctx)
		assert.False(t, ok)
		_, err := store.Peek(ctx)
		assert.ErrorIs(t, err, storage.ErrSnapshotIncomplete)
	})

	t.Run("data only", func(t *testing.T) {
		store, backend := newTestStore(t, clock)
		data, err := storage.MarshalSnapshotEntries(map[string]core.CacheEntry{"A1": entry("A1", "fp1")})
		require.NoError(t, err)
		writeSnapshotData(t, backend, data)

		assert.False(t, store.IsValid(ctx))
		_, ok := store.Load(ctx)
		assert.False(t, ok)
		_, err = store.Peek(ctx)
		assert.ErrorIs(t, err, storage.ErrSnapshotIncomplete)
	})

	t.Run("missing chunk", func(t *testing.T) {
		store, backend := newTestStore(t, clock)
		writeKey(t, backend, snapshotDataKey, encodeChunkCount(2))
		writeKey(t, backend, snapshotChunkKey(0), []byte("partial"))
		writeKey(t, backend, snapshotTimeKey, storage.MarshalTimestamp(clock.Now()))

		_, ok := store.Load(ctx)
		assert.False(t, ok)
		_, err := store.Peek(ctx)
		assert.ErrorIs(t, err, storage.ErrSnapshotIncomplete)
	})
}

func TestSnapshotStore_CorruptData(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	t.Run("garbage data", func(t *testing.T) {
		store, backend := newTestStore(t, clock)
		writeSnapshotData(t, backend, []byte("garbage"))
		writeKey(t, backend, snapshotTimeKey, storage.MarshalTimestamp(clock.Now()))

		_, ok := store.Load(ctx)
		assert.False(t, ok, "decode failure degrades to a miss")
	})

	t.Run("garbage chunk count", func(t *testing.T) {
		store, backend := newTestStore(t, clock)
		writeKey(t, backend, snapshotDataKey, []byte("garbage"))
		writeKey(t, backend, snapshotTimeKey, storage.MarshalTimestamp(clock.Now()))

		_, ok := store.Load(ctx)
		assert.False(t, ok)

		store.Save(ctx, map[string]core.CacheEntry{"A1": entry("A1", "fp1")})
		_, ok = store.Load(ctx)
		assert.True(t, ok, "a new save replaces a corrupt one")
	})
}

func TestSnapshotStore_ClosedBackend(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t, newFakeClock())
	require.NoError(t, backend.Close())

	assert.False(t, store.IsValid(ctx))
	_, ok := store.Load(ctx)
	assert.False(t, ok)
	store.Save(ctx, map[string]core.CacheEntry{"A1": entry("A1", "fp1")})
	assert.ErrorIs(t, store.Clear(ctx), storage.ErrStorageClosed)
}

func TestSnapshotStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	clock := newFakeClock()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	NewSnapshotStore(backend, WithClock(clock.Now)).Save(ctx, map[string]core.CacheEntry{"A1": entry("A1", "fp1")})
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	snap, ok := NewSnapshotStore(backend, WithClock(clock.Now)).Load(ctx)
	require.True(t, ok)
	assert.Contains(t, snap.Entries, "A1")
}

func writeSnapshotData(t *testing.T, backend *Backend, data []byte) {
	t.Helper()
	writeKey(t, backend, snapshotChunkKey(0), data)
	writeKey(t, backend, snapshotDataKey, encodeChunkCount(1))
}

func writeKey(t *testing.T, backend *Backend, key, value []byte) {
	t.Helper()
	err := backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)
}
