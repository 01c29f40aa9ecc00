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

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/observability"
	"github.com/poiesic/embedsync/storage"
)

// Engine reconciles batches of records against the local snapshot, the
// remote cache and the compute backend. Reconcile calls on one Engine are
// serialized.
type Engine struct {
	embedder ai.Embedder
	remote   storage.RemoteCache
	local    storage.LocalCache
	cfg      Config
	stats    *observability.Stats
	logger   *slog.Logger
	pool     *ants.Pool

	mu sync.Mutex
}

// NewEngine creates an engine. local may be nil, which disables the local tier.
func NewEngine(embedder ai.Embedder, remote storage.RemoteCache, local storage.LocalCache, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if remote == nil {
		return nil, ErrRemoteCacheRequired
	}

	e := &Engine{
		embedder: embedder,
		remote:   remote,
		local:    local,
		cfg:      *DefaultConfig(),
		stats:    observability.MustNewStats(nil),
		logger:   slog.Default().With("component", "reconcile"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(e.cfg.WriteBackWorkers)
	if err != nil {
		return nil, fmt.Errorf("create write-back pool: %w", err)
	}
	e.pool = pool

	return e, nil
}

// Close releases the write-back pool. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Stats returns the engine's counters.
func (e *Engine) Stats() *observability.Stats {
	return e.stats
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Warm makes sure a cold compute backend is awake before a batch. Backends
// that do not implement ai.Warmer are assumed ready.
func (e *Engine) Warm(ctx context.Context, onStatus ai.StatusFunc) bool {
	warmer, ok := e.embedder.(ai.Warmer)
	if !ok {
		return true
	}
	if warmer.Alive(ctx) {
		return true
	}
	return warmer.Wake(ctx, onStatus)
}

type pendingRecord struct {
	record      core.Record
	fingerprint core.Fingerprint
}

type entryKey struct {
	id          string
	fingerprint core.Fingerprint
}

// Reconcile returns embeddings for records, keyed by record ID. Records
// that could not be resolved are absent from the result.
//
// Unless forceRefresh is set, a valid local snapshot is consulted first; if
// it satisfies every record, the remote tier is not contacted. The remaining
// records are looked up in a single remote bulk read and whatever is still
// missing is computed sequentially. onProgress may be nil.
//
// The only errors are invalid input and context cancellation. On
// cancellation the records resolved so far are returned with ctx.Err().
func (e *Engine) Reconcile(ctx context.Context, records []core.Record, onProgress ProgressFunc, forceRefresh bool) (core.BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := e.logger.With("run_id", uuid.NewString())
	progress := newProgressReporter(onProgress)
	result := make(core.BatchResult)

	batch, err := e.prepare(records, logger)
	if err != nil {
		return nil, err
	}
	total := len(batch)
	if total == 0 {
		progress.report(100, "No records to process", "")
		return result, nil
	}

	logger.Info("reconciling batch", "records", total, "force_refresh", forceRefresh)
	pending := batch

	useLocal := e.cfg.LocalCache && e.local != nil
	if useLocal && !forceRefresh {
		progress.report(0, "Checking local cache", "")
		if snap, ok := e.local.Load(ctx); ok {
			pending = e.accept(ctx, pending, result, core.TierLocal, func(p pendingRecord) (core.CacheEntry, bool) {
				entry, ok := snap.Entries[p.record.ID]
				return entry, ok
			})
		}
		if len(pending) == 0 {
			logger.Info("batch satisfied from local cache", "records", total)
			progress.report(100, fmt.Sprintf("All %d records loaded from local cache", total), "")
			return result, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	progress.reportCount(total-len(pending), total, "Fetching embeddings from remote cache", "")
	remoteEntries := make(map[entryKey]core.CacheEntry)
	for _, entry := range e.remote.GetAll(ctx) {
		remoteEntries[entryKey{entry.RecordID, entry.Fingerprint}] = entry
	}
	pending = e.accept(ctx, pending, result, core.TierRemote, func(p pendingRecord) (core.CacheEntry, bool) {
		entry, ok := remoteEntries[entryKey{p.record.ID, p.fingerprint}]
		return entry, ok
	})

	cached := total - len(pending)
	progress.reportCount(cached, total, fmt.Sprintf("%d from cache, %d need processing", cached, len(pending)), "")

	computeErr := e.computePending(ctx, pending, cached, total, result, progress, logger)

	if useLocal && len(result) > 0 {
		e.saveLocal(ctx, batch, result)
	}

	if computeErr != nil {
		return result, computeErr
	}

	progress.report(100, fmt.Sprintf("Resolved %d of %d records", len(result), total), "")
	logger.Info("batch reconciled", "records", total, "resolved", len(result), "stats", e.stats.Snapshot())
	return result, nil
}

// prepare validates records and computes fingerprints. A later record with
// the same ID replaces an earlier one in place.
func (e *Engine) prepare(records []core.Record, logger *slog.Logger) ([]pendingRecord, error) {
	batch := make([]pendingRecord, 0, len(records))
	index := make(map[string]int, len(records))
	for i, r := range records {
		if err := core.ValidateRecord(r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		p := pendingRecord{record: r, fingerprint: core.FingerprintOf(r)}
		if at, dup := index[r.ID]; dup {
			logger.Warn("duplicate record id in batch, keeping the last one", "record_id", r.ID)
			batch[at] = p
			continue
		}
		index[r.ID] = len(batch)
		batch = append(batch, p)
	}
	return batch, nil
}

// accept moves records with a matching, valid entry into result and
// returns the ones still unresolved.
func (e *Engine) accept(ctx context.Context, pending []pendingRecord, result core.BatchResult, tier core.Tier,
	lookup func(pendingRecord) (core.CacheEntry, bool)) []pendingRecord {
	remaining := make([]pendingRecord, 0, len(pending))
	for _, p := range pending {
		entry, ok := lookup(p)
		if !ok || !entry.Matches(p.fingerprint) || core.ValidateEmbeddingSet(entry.Embeddings) != nil {
			remaining = append(remaining, p)
			continue
		}
		result[p.record.ID] = entry.Embeddings.Clone()
		switch tier {
		case core.TierLocal:
			e.stats.RecordLocalHit(ctx)
		case core.TierRemote:
			e.stats.RecordRemoteHit(ctx)
		}
	}
	return remaining
}

// computePending computes the remaining records one at a time. Computed
// sets are written back to the remote cache on the pool; all writes have
// finished when it returns.
func (e *Engine) computePending(ctx context.Context, pending []pendingRecord, cached, total int,
	result core.BatchResult, progress *progressReporter, logger *slog.Logger) error {
	if len(pending) == 0 {
		return nil
	}

	limit := rate.Inf
	if e.cfg.CallDelay > 0 {
		limit = rate.Every(e.cfg.CallDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var writes sync.WaitGroup
	defer writes.Wait()

	for i, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		progress.reportCount(cached+i, total,
			fmt.Sprintf("Computing embeddings (%d/%d)", cached+i+1, total), p.record.Name())

		set, err := e.computeSet(ctx, limiter, p.record)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			e.stats.RecordError(ctx)
			logger.Error("failed to compute embeddings, omitting record", "record_id", p.record.ID, "err", err)
			continue
		}

		result[p.record.ID] = set
		e.stats.RecordComputed(ctx)
		e.writeBack(ctx, &writes, newEntry(p, set), logger)
	}
	return nil
}

// computeSet embeds the combined text and, when enabled, each non-empty
// field. Any failed call fails the whole record; incomplete sets are never
// cached.
func (e *Engine) computeSet(ctx context.Context, limiter *rate.Limiter, r core.Record) (core.EmbeddingSet, error) {
	combined := truncate(core.CombinedText(r), e.cfg.CombinedTextLimit)
	if combined == "" {
		return nil, ErrNothingToEmbed
	}

	vec, err := e.embed(ctx, limiter, combined)
	if err != nil {
		return nil, fmt.Errorf("combined: %w", err)
	}
	set := core.EmbeddingSet{core.SlotCombined: vec}

	if !e.cfg.FieldEmbeddings {
		return set, nil
	}
	for _, slot := range core.FieldSlots {
		text := strings.TrimSpace(r.Field(slot))
		if text == "" {
			continue
		}
		vec, err := e.embed(ctx, limiter, truncate(text, e.cfg.FieldTextLimit))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%s: %w", slot, err)
		}
		set[slot] = vec
	}
	return set, nil
}

func (e *Engine) embed(ctx context.Context, limiter *rate.Limiter, text string) (core.Vector, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vec, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	return vec, nil
}

// writeBack stores entry in the remote cache on the pool. Failures are
// logged; the record stays resolved.
func (e *Engine) writeBack(ctx context.Context, writes *sync.WaitGroup, entry core.CacheEntry, logger *slog.Logger) {
	// Writes already started finish even if the batch is canceled.
	wctx := context.WithoutCancel(ctx)
	task := func() {
		defer writes.Done()
		if !e.remote.Put(wctx, entry) {
			logger.Warn("failed to write embeddings to remote cache", "record_id", entry.RecordID)
		}
	}

	writes.Add(1)
	if err := e.pool.Submit(task); err != nil {
		if !errors.Is(err, ants.ErrPoolClosed) {
			logger.Debug("write-back pool rejected task, writing inline", "err", err)
		}
		task()
	}
}

// saveLocal replaces the local snapshot with every resolved record under
// its fingerprint at reconciliation time.
func (e *Engine) saveLocal(ctx context.Context, batch []pendingRecord, result core.BatchResult) {
	entries := make(map[string]core.CacheEntry, len(result))
	for _, p := range batch {
		set, ok := result[p.record.ID]
		if !ok {
			continue
		}
		entries[p.record.ID] = newEntry(p, set)
	}
	e.local.Save(context.WithoutCancel(ctx), entries)
}

func newEntry(p pendingRecord, set core.EmbeddingSet) core.CacheEntry {
	return core.CacheEntry{
		RecordID:    p.record.ID,
		Fingerprint: p.fingerprint,
		Embeddings:  set,
		OwnerName:   p.record.OwnerName,
		Title:       p.record.Title,
	}
}
