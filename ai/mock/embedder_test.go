package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/embedsync/core"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()

	a, err := m.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	b, err := m.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	c, err := m.EmbedText(context.Background(), "world")
	require.NoError(t, err)

	assert.Len(t, a, DefaultDim)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, []string{"hello", "hello", "world"}, m.Texts())
}

func TestMockEmbedder_FailOn(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockEmbedder().FailOn("bad", boom)

	_, err := m.EmbedText(context.Background(), "bad")
	assert.ErrorIs(t, err, boom)

	_, err = m.EmbedText(context.Background(), "good")
	assert.NoError(t, err)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockEmbedder_Func(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) (core.Vector, error) {
		return core.Vector{1, 2}, nil
	}

	vec, err := m.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, core.Vector{1, 2}, vec)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	vec, err = m.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDim)
}

func TestMockEmbedder_Concurrent(t *testing.T) {
	m := NewMockEmbedder()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedText(context.Background(), "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.CallCount())
}

func TestMockWarmer(t *testing.T) {
	w := NewMockWarmer(false, true)
	assert.False(t, w.Alive(context.Background()))

	var status string
	assert.True(t, w.Wake(context.Background(), func(s string) { status = s }))
	assert.Equal(t, "awake", status)
	assert.True(t, w.Alive(context.Background()))
	assert.Equal(t, 2, w.Probes())
	assert.Equal(t, 1, w.WakeCalls())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	assert.NotNil(t, p.Embedder())
	require.NoError(t, p.Close())
	assert.True(t, p.(*MockProvider).Closed())
}
