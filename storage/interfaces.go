package storage

import (
	"context"
	"time"

	"github.com/poiesic/embedsync/core"
)

// ConnectionStatus reports whether the remote cache's backing store is reachable.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// RemoteCache is the authoritative cache shared by every client.
// Implementations never return errors: failures are logged and reported as
// an empty result, a miss or false. Callers cannot tell a miss from a
// failed lookup.
type RemoteCache interface {
	// CheckConnection reports the health of the remote store.
	CheckConnection(ctx context.Context) ConnectionStatus

	// GetAll returns every stored entry, or an empty slice on failure.
	// Entries without a combined embedding are never returned.
	GetAll(ctx context.Context) []core.CacheEntry

	// Get looks up the entry for id whose fingerprint equals fp.
	Get(ctx context.Context, id string, fp core.Fingerprint) (*core.CacheEntry, bool)

	// Put stores entry, replacing any entry for the same record.
	// Entries without a combined embedding are rejected and never sent.
	Put(ctx context.Context, entry core.CacheEntry) bool
}

// LocalCache is a persistent snapshot of cache entries that expires as a
// whole. Implementations never validate per-entry fingerprints; that is the
// caller's job.
type LocalCache interface {
	// IsValid reports whether a snapshot exists and is younger than the
	// maximum age.
	IsValid(ctx context.Context) bool

	// Load returns the snapshot if it is valid.
	Load(ctx context.Context) (*core.LocalCacheSnapshot, bool)

	// Save replaces the snapshot with entries and resets its creation time.
	// Failures are logged and otherwise ignored.
	Save(ctx context.Context, entries map[string]core.CacheEntry)

	// Clear removes the snapshot.
	Clear(ctx context.Context) error

	// Age returns how old the snapshot is, if one exists.
	Age(ctx context.Context) (time.Duration, bool)
}
