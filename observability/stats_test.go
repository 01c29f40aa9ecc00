package observability

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestStats_Counters(t *testing.T) {
	ctx := context.Background()
	s, err := NewStats(nil)
	require.NoError(t, err)

	s.RecordLocalHit(ctx)
	s.RecordLocalHit(ctx)
	s.RecordRemoteHit(ctx)
	s.RecordComputed(ctx)
	s.RecordError(ctx)

	snap := s.Snapshot()
	assert.Equal(t, StatsSnapshot{FromLocal: 2, FromRemote: 1, Computed: 1, Errors: 1}, snap)
	assert.Equal(t, int64(4), snap.Resolved())
}

func TestStats_SnapshotIsImmutable(t *testing.T) {
	ctx := context.Background()
	s, err := NewStats(nil)
	require.NoError(t, err)

	s.RecordComputed(ctx)
	snap := s.Snapshot()
	s.RecordComputed(ctx)

	assert.Equal(t, int64(1), snap.Computed)
	assert.Equal(t, int64(2), s.Snapshot().Computed)
}

func TestStats_Reset(t *testing.T) {
	ctx := context.Background()
	s, err := NewStats(nil)
	require.NoError(t, err)

	s.RecordLocalHit(ctx)
	s.RecordError(ctx)
	s.Reset()
	assert.Equal(t, StatsSnapshot{}, s.Snapshot())
}

func TestStats_Nil(t *testing.T) {
	var s *Stats
	ctx := context.Background()

	assert.NotPanics(t, func() {
		s.RecordLocalHit(ctx)
		s.RecordRemoteHit(ctx)
		s.RecordComputed(ctx)
		s.RecordError(ctx)
		s.Reset()
	})
	assert.Equal(t, StatsSnapshot{}, s.Snapshot())
}

func TestStats_WithMeter(t *testing.T) {
	ctx := context.Background()
	s, err := NewStats(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	s.RecordComputed(ctx)
	s.RecordError(ctx)
	assert.Equal(t, StatsSnapshot{Computed: 1, Errors: 1}, s.Snapshot())

	assert.NotNil(t, MustNewStats(noop.NewMeterProvider().Meter("test")))
}

func TestStats_Concurrent(t *testing.T) {
	ctx := context.Background()
	s, err := NewStats(nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordRemoteHit(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), s.Snapshot().FromRemote)
}
