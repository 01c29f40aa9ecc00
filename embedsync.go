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

package embedsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/ai/openai"
	"github.com/poiesic/embedsync/ai/remote"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/observability"
	"github.com/poiesic/embedsync/reconcile"
	"github.com/poiesic/embedsync/rpc"
	"github.com/poiesic/embedsync/storage"
	"github.com/poiesic/embedsync/storage/badger"
	storageremote "github.com/poiesic/embedsync/storage/remote"
)

// Syncer wires the local snapshot store, the remote cache, the compute
// backend and the reconciliation engine behind one handle.
type Syncer struct {
	backend   *badger.Backend
	snapshots *badger.SnapshotStore
	cache     *storageremote.Client
	gateway   *remote.Gateway
	provider  ai.Provider
	engine    *reconcile.Engine
	stats     *observability.Stats
	logger    *slog.Logger
}

// SyncerOption configures a Syncer.
type SyncerOption func(*syncerOptions)

type syncerOptions struct {
	aiConfig      *ai.Config
	openaiConfig  *ai.Config
	engineOpts    []reconcile.Option
	snapshotOpts  []badger.SnapshotOption
	transportOpts []rpc.Option
	meter         metric.Meter
	logger        *slog.Logger
}

// WithAIConfig sets the proxy configuration used by the remote cache and
// the compute gateway.
func WithAIConfig(cfg *ai.Config) SyncerOption {
	return func(o *syncerOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithOpenAICompute computes embeddings through an OpenAI-compatible API
// instead of the proxy's compute function. The remote cache still goes
// through the proxy.
func WithOpenAICompute(cfg *ai.Config) SyncerOption {
	return func(o *syncerOptions) {
		o.openaiConfig = cfg
	}
}

// WithEngineOptions passes options to the reconciliation engine.
func WithEngineOptions(opts ...reconcile.Option) SyncerOption {
	return func(o *syncerOptions) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// WithSnapshotOptions passes options to the local snapshot store.
func WithSnapshotOptions(opts ...badger.SnapshotOption) SyncerOption {
	return func(o *syncerOptions) {
		o.snapshotOpts = append(o.snapshotOpts, opts...)
	}
}

// WithTransportOptions passes options to the RPC transport.
func WithTransportOptions(opts ...rpc.Option) SyncerOption {
	return func(o *syncerOptions) {
		o.transportOpts = append(o.transportOpts, opts...)
	}
}

// WithMeter exports the reconciliation counters through meter.
func WithMeter(meter metric.Meter) SyncerOption {
	return func(o *syncerOptions) {
		o.meter = meter
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) SyncerOption {
	return func(o *syncerOptions) {
		o.logger = logger
	}
}

// NewSyncer opens the local store at dbPath and connects the remote tiers.
// An empty dbPath keeps the local store in memory.
func NewSyncer(dbPath string, opts ...SyncerOption) (*Syncer, error) {
	options := &syncerOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid proxy configuration: %w", err)
	}
	cfg := options.aiConfig

	transportOpts := append([]rpc.Option{
		rpc.WithRetryMax(cfg.TransportRetries),
		rpc.WithLogger(options.logger.With("component", "rpc")),
	}, options.transportOpts...)
	transport, err := rpc.NewHTTPTransport(cfg.Host, transportOpts...)
	if err != nil {
		return nil, err
	}

	stats, err := observability.NewStats(options.meter)
	if err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(dbPath, dbPath == "")
	if err != nil {
		return nil, err
	}

	s := &Syncer{
		backend: backend,
		snapshots: badger.NewSnapshotStore(backend, append([]badger.SnapshotOption{
			badger.WithLogger(options.logger.With("component", "local_cache")),
		}, options.snapshotOpts...)...),
		cache: storageremote.NewClient(transport,
			storageremote.WithTimeouts(cfg.BulkTimeout, cfg.PointTimeout),
			storageremote.WithLogger(options.logger.With("component", "remote_cache")),
		),
		stats:  stats,
		logger: options.logger,
	}

	var embedder ai.Embedder
	if options.openaiConfig != nil {
		provider, err := openai.NewProvider(options.openaiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
		s.provider = provider
		embedder = provider.Embedder()
	} else {
		s.gateway = remote.NewGateway(transport, cfg,
			remote.WithLogger(options.logger.With("component", "compute")))
		embedder = s.gateway
	}

	engineOpts := append([]reconcile.Option{
		reconcile.WithStats(stats),
		reconcile.WithLogger(options.logger.With("component", "reconcile")),
	}, options.engineOpts...)
	engine, err := reconcile.NewEngine(embedder, s.cache, s.snapshots, engineOpts...)
	if err != nil {
		s.closeProvider()
		backend.Close()
		return nil, err
	}
	s.engine = engine

	return s, nil
}

// Close releases the engine, the compute backend and the local store.
func (s *Syncer) Close() error {
	s.engine.Close()
	s.closeProvider()

	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing local store", "err", err)
		return err
	}
	return nil
}

func (s *Syncer) closeProvider() {
	if s.provider == nil {
		return
	}
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing compute provider", "err", err)
	}
}

// Reconcile returns embeddings for records. See reconcile.Engine.Reconcile.
func (s *Syncer) Reconcile(ctx context.Context, records []core.Record, onProgress reconcile.ProgressFunc, forceRefresh bool) (core.BatchResult, error) {
	return s.engine.Reconcile(ctx, records, onProgress, forceRefresh)
}

// Warm wakes the compute backend if it is cold.
func (s *Syncer) Warm(ctx context.Context, onStatus ai.StatusFunc) bool {
	return s.engine.Warm(ctx, onStatus)
}

// Alive probes the compute backend without waking it. Backends without a
// liveness probe report true.
func (s *Syncer) Alive(ctx context.Context) bool {
	if s.gateway == nil {
		return true
	}
	return s.gateway.Alive(ctx)
}

// CheckConnection reports whether the remote cache database is reachable.
func (s *Syncer) CheckConnection(ctx context.Context) storage.ConnectionStatus {
	return s.cache.CheckConnection(ctx)
}

// Lookup fetches the remote cache entry for record if it is current.
func (s *Syncer) Lookup(ctx context.Context, record core.Record) (*core.CacheEntry, bool, error) {
	if err := core.ValidateRecord(record); err != nil {
		return nil, false, err
	}
	entry, ok := s.cache.Get(ctx, record.ID, core.FingerprintOf(record))
	return entry, ok, nil
}

// CacheStatus describes the local snapshot.
type CacheStatus struct {
	Present bool
	Valid   bool
	Entries int
	Age     time.Duration
	MaxAge  time.Duration
}

// CacheStatus inspects the local snapshot without regard to its age.
func (s *Syncer) CacheStatus(ctx context.Context) (CacheStatus, error) {
	status := CacheStatus{MaxAge: s.snapshots.MaxAge()}

	snap, err := s.snapshots.Peek(ctx)
	switch {
	case errors.Is(err, storage.ErrSnapshotNotFound):
		return status, nil
	case err != nil:
		return status, err
	}

	status.Present = true
	status.Entries = len(snap.Entries)
	status.Age, _ = s.snapshots.Age(ctx)
	status.Valid = s.snapshots.IsValid(ctx)
	return status, nil
}

// ClearCache removes the local snapshot.
func (s *Syncer) ClearCache(ctx context.Context) error {
	return s.snapshots.Clear(ctx)
}

// Stats returns the counters accumulated since the Syncer was opened.
func (s *Syncer) Stats() observability.StatsSnapshot {
	return s.stats.Snapshot()
}
