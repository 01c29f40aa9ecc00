package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/core"
)

// DefaultDim is the length of vectors produced by the default behavior.
const DefaultDim = 384

// MockEmbedder is a test double for ai.Embedder. It is safe for concurrent use.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) (core.Vector, error)

	mu       sync.Mutex
	texts    []string
	failures map[string]error
}

var _ ai.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a new MockEmbedder with default behavior.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{failures: make(map[string]error)}
}

// FailOn makes EmbedText return err whenever it is called with text.
func (m *MockEmbedder) FailOn(text string, err error) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[text] = err
	return m
}

// EmbedText returns a deterministic vector derived from text.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) (core.Vector, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	failure := m.failures[text]
	fn := m.EmbedTextFunc
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if fn != nil {
		return fn(ctx, text)
	}
	return Vector(text, DefaultDim), nil
}

// CallCount returns the number of times EmbedText was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

// Texts returns the texts passed to EmbedText, in call order.
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Reset clears the call history, configured failures and EmbedTextFunc.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = nil
	m.failures = make(map[string]error)
	m.EmbedTextFunc = nil
}

// Vector generates the deterministic vector the mock returns for text.
func Vector(text string, dim int) core.Vector {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make(core.Vector, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}

	var sumSquares float32
	for _, v := range vector {
		sumSquares += v * v
	}
	if sumSquares > 0 {
		norm := float32(1.0) / sumSquares
		for i := range vector {
			vector[i] *= norm
		}
	}

	return vector
}
