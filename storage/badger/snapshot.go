// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

// DefaultMaxAge is how long a saved snapshot stays valid.
const DefaultMaxAge = 30 * time.Minute

// SnapshotStore implements storage.LocalCache on a Backend.
// Every storage failure degrades to a cache miss.
type SnapshotStore struct {
	backend *Backend
	maxAge  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

var _ storage.LocalCache = (*SnapshotStore)(nil)

// SnapshotOption configures a SnapshotStore.
type SnapshotOption func(*SnapshotStore)

// WithMaxAge sets how long a snapshot stays valid.
func WithMaxAge(d time.Duration) SnapshotOption {
	return func(s *SnapshotStore) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SnapshotOption {
	return func(s *SnapshotStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SnapshotOption {
	return func(s *SnapshotStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSnapshotStore creates a store over backend.
func NewSnapshotStore(backend *Backend, opts ...SnapshotOption) *SnapshotStore {
	s := &SnapshotStore{
		backend: backend,
		maxAge:  DefaultMaxAge,
		now:     time.Now,
		logger:  slog.Default().With("component", "local-cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxAge returns the configured validity window.
func (s *SnapshotStore) MaxAge() time.Duration {
	return s.maxAge
}

// Peek reads the snapshot regardless of its age.
// Returns storage.ErrSnapshotNotFound when nothing was saved.
func (s *SnapshotStore) Peek(ctx context.Context) (*core.LocalCacheSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		data      []byte
		createdAt time.Time
	)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		createdAt, err = readTimestamp(tx)
		dataItem, dataErr := tx.Get(snapshotDataKey)

		switch {
		case errors.Is(err, badger.ErrKeyNotFound) && errors.Is(dataErr, badger.ErrKeyNotFound):
			return storage.ErrSnapshotNotFound
		case errors.Is(err, badger.ErrKeyNotFound) || errors.Is(dataErr, badger.ErrKeyNotFound):
			return storage.ErrSnapshotIncomplete
		case err != nil:
			return err
		case dataErr != nil:
			return dataErr
		}

		data, err = readChunks(tx, dataItem)
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	entries, err := storage.UnmarshalSnapshotEntries(data)
	if err != nil {
		return nil, err
	}
	return &core.LocalCacheSnapshot{Entries: entries, CreatedAt: createdAt}, nil
}

func readChunks(tx *badger.Txn, countItem *badger.Item) ([]byte, error) {
	count, err := readChunkCount(countItem)
	if err != nil {
		return nil, err
	}
	var data []byte
	for i := range count {
		item, err := tx.Get(snapshotChunkKey(i))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: chunk %d of %d missing", storage.ErrSnapshotIncomplete, i, count)
		}
		if err != nil {
			return nil, err
		}
		err = item.Value(func(val []byte) error {
			data = append(data, val...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func readChunkCount(item *badger.Item) (uint32, error) {
	var count uint32
	err := item.Value(func(val []byte) error {
		var err error
		count, err = decodeChunkCount(val)
		return err
	})
	return count, err
}

func readTimestamp(tx *badger.Txn) (time.Time, error) {
	item, err := tx.Get(snapshotTimeKey)
	if err != nil {
		return time.Time{}, err
	}
	var createdAt time.Time
	err = item.Value(func(val []byte) error {
		var err error
		createdAt, err = storage.UnmarshalTimestamp(val)
		return err
	})
	return createdAt, err
}

func (s *SnapshotStore) expired(createdAt time.Time) bool {
	return s.now().Sub(createdAt) >= s.maxAge
}

// Load implements storage.LocalCache.
func (s *SnapshotStore) Load(ctx context.Context) (*core.LocalCacheSnapshot, bool) {
	snap, err := s.Peek(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrSnapshotNotFound) {
			s.logger.Warn("local cache unreadable, treating as miss", "err", err)
		}
		return nil, false
	}
	if s.expired(snap.CreatedAt) {
		s.logger.Debug("local cache expired", "created_at", snap.CreatedAt, "max_age", s.maxAge)
		return nil, false
	}
	return snap, true
}

// Age implements storage.LocalCache. It needs both keys to be present.
func (s *SnapshotStore) Age(ctx context.Context) (time.Duration, bool) {
	if ctx.Err() != nil {
		return 0, false
	}

	var createdAt time.Time
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		if createdAt, err = readTimestamp(tx); err != nil {
			return err
		}
		_, err = tx.Get(snapshotDataKey)
		return err
	}, false)
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("failed to read local cache timestamp", "err", err)
		}
		return 0, false
	}
	return s.now().Sub(createdAt), true
}

// IsValid implements storage.LocalCache.
func (s *SnapshotStore) IsValid(ctx context.Context) bool {
	age, ok := s.Age(ctx)
	return ok && age < s.maxAge
}

// Save implements storage.LocalCache. Entries that fail validation are
// dropped. Data and timestamp are written in a single transaction.
func (s *SnapshotStore) Save(ctx context.Context, entries map[string]core.CacheEntry) {
	size, err := s.save(ctx, entries)
	if err != nil {
		s.logger.Error("failed to save local cache", "entries", len(entries), "bytes", size, "err", err)
		return
	}
	s.logger.Debug("saved local cache", "entries", len(entries), "bytes", size)
}

// save returns the encoded snapshot size alongside any error.
func (s *SnapshotStore) save(ctx context.Context, entries map[string]core.CacheEntry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	valid := make(map[string]core.CacheEntry, len(entries))
	for id, entry := range entries {
		if err := core.ValidateCacheEntry(entry); err != nil {
			s.logger.Warn("dropping invalid entry from local cache", "record_id", id, "err", err)
			continue
		}
		valid[id] = entry
	}

	data, err := storage.MarshalSnapshotEntries(valid)
	if err != nil {
		return 0, err
	}

	chunks := splitChunks(data, s.backend.ChunkSize())
	return len(data), s.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteChunks(tx, uint32(len(chunks))); err != nil {
			return err
		}
		for i, chunk := range chunks {
			if err := tx.Set(snapshotChunkKey(uint32(i)), chunk); err != nil {
				return fmt.Errorf("write snapshot chunk %d of %d: %w", i, len(chunks), err)
			}
		}
		if err := tx.Set(snapshotDataKey, encodeChunkCount(uint32(len(chunks)))); err != nil {
			return fmt.Errorf("write snapshot data: %w", err)
		}
		if err := tx.Set(snapshotTimeKey, storage.MarshalTimestamp(s.now())); err != nil {
			return fmt.Errorf("write snapshot timestamp: %w", err)
		}
		return tx.Commit()
	}, true)
}

// Clear implements storage.LocalCache.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteChunks(tx, 0); err != nil {
			return err
		}
		if err := tx.Delete(snapshotDataKey); err != nil {
			return err
		}
		if err := tx.Delete(snapshotTimeKey); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// deleteChunks removes stored chunks from index from onward, as recorded by
// the current chunk count.
func deleteChunks(tx *badger.Txn, from uint32) error {
	item, err := tx.Get(snapshotDataKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	count, err := readChunkCount(item)
	if err != nil {
		// Unreadable counts leave orphans behind; the next count overrides them.
		return nil
	}
	for i := from; i < count; i++ {
		if err := tx.Delete(snapshotChunkKey(i)); err != nil {
			return err
		}
	}
	return nil
}
