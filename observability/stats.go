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

package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/poiesic/embedsync/core"
)

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	FromLocal  int64 `json:"from_local"`
	FromRemote int64 `json:"from_remote"`
	Computed   int64 `json:"computed"`
	Errors     int64 `json:"errors"`
}

// Resolved returns the number of records satisfied by any tier.
func (s StatsSnapshot) Resolved() int64 {
	return s.FromLocal + s.FromRemote + s.Computed
}

// Stats counts reconciliation outcomes. It is safe for concurrent use.
// A nil *Stats records nothing.
type Stats struct {
	fromLocal  atomic.Int64
	fromRemote atomic.Int64
	computed   atomic.Int64
	errors     atomic.Int64

	resolved metric.Int64Counter
	failed   metric.Int64Counter
}

// NewStats creates Stats. A nil meter disables export.
func NewStats(meter metric.Meter) (*Stats, error) {
	s := &Stats{}
	if meter == nil {
		return s, nil
	}

	resolved, err := meter.Int64Counter(
		MetricNameResolved,
		metric.WithDescription("Records whose embeddings were resolved. Label tier: local, remote, compute."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create resolved counter: %w", err)
	}

	failed, err := meter.Int64Counter(
		MetricNameErrors,
		metric.WithDescription("Records omitted from a batch because their embeddings could not be computed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors counter: %w", err)
	}

	s.resolved = resolved
	s.failed = failed
	return s, nil
}

// MustNewStats is NewStats for callers that cannot handle an error; a
// failing meter is logged and export is disabled.
func MustNewStats(meter metric.Meter) *Stats {
	s, err := NewStats(meter)
	if err != nil {
		slog.Default().Warn("metrics export disabled", "err", err)
		return &Stats{}
	}
	return s
}

func (s *Stats) recordResolved(ctx context.Context, tier core.Tier, counter *atomic.Int64) {
	if s == nil {
		return
	}
	counter.Add(1)
	if s.resolved != nil {
		s.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String(attrTier, tier.String())))
	}
}

// RecordLocalHit counts a record served from the local cache.
func (s *Stats) RecordLocalHit(ctx context.Context) {
	if s == nil {
		return
	}
	s.recordResolved(ctx, core.TierLocal, &s.fromLocal)
}

// RecordRemoteHit counts a record served from the remote cache.
func (s *Stats) RecordRemoteHit(ctx context.Context) {
	if s == nil {
		return
	}
	s.recordResolved(ctx, core.TierRemote, &s.fromRemote)
}

// RecordComputed counts a record computed by the compute backend.
func (s *Stats) RecordComputed(ctx context.Context) {
	if s == nil {
		return
	}
	s.recordResolved(ctx, core.TierCompute, &s.computed)
}

// RecordError counts a record that could not be resolved.
func (s *Stats) RecordError(ctx context.Context) {
	if s == nil {
		return
	}
	s.errors.Add(1)
	if s.failed != nil {
		s.failed.Add(ctx, 1)
	}
}

// Reset zeroes the in-process counters. Exported counters are cumulative
// and unaffected.
func (s *Stats) Reset() {
	if s == nil {
		return
	}
	s.fromLocal.Store(0)
	s.fromRemote.Store(0)
	s.computed.Store(0)
	s.errors.Store(0)
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		FromLocal:  s.fromLocal.Load(),
		FromRemote: s.fromRemote.Load(),
		Computed:   s.computed.Load(),
		Errors:     s.errors.Load(),
	}
}
