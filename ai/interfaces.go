package ai

import (
	"context"

	"github.com/poiesic/embedsync/core"
)

// Embedder turns text into a vector embedding.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Implementations own their retry policy; a returned error means the
	// text could not be embedded at all.
	EmbedText(ctx context.Context, text string) (core.Vector, error)
}

// StatusFunc receives human-readable progress of a wake-up.
type StatusFunc func(status string)

// Warmer is implemented by compute backends that may be asleep and need
// waking before a batch.
type Warmer interface {
	// Alive reports whether the backend answers a cheap liveness probe.
	Alive(ctx context.Context) bool

	// Wake drives the backend out of a cold start. It returns false when the
	// backend never became responsive.
	Wake(ctx context.Context, onStatus StatusFunc) bool
}

// Provider aggregates a compute backend for lifecycle management.
type Provider interface {
	// Embedder returns the embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	Close() error
}
