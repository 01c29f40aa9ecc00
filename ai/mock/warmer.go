package mock

import (
	"context"
	"sync"

	"github.com/poiesic/embedsync/ai"
)

// MockWarmer is an embedder that also implements ai.Warmer.
type MockWarmer struct {
	*MockEmbedder

	mu        sync.Mutex
	alive     bool
	wakeOK    bool
	probes    int
	wakeCalls int
}

var _ ai.Warmer = (*MockWarmer)(nil)

// NewMockWarmer creates a warmer whose probe reports alive and whose wake
// reports wakeOK.
func NewMockWarmer(alive, wakeOK bool) *MockWarmer {
	return &MockWarmer{
		MockEmbedder: NewMockEmbedder(),
		alive:        alive,
		wakeOK:       wakeOK,
	}
}

func (w *MockWarmer) Alive(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.probes++
	return w.alive
}

func (w *MockWarmer) Wake(ctx context.Context, onStatus ai.StatusFunc) bool {
	w.mu.Lock()
	w.wakeCalls++
	ok := w.wakeOK
	if ok {
		w.alive = true
	}
	w.mu.Unlock()

	if onStatus != nil {
		if ok {
			onStatus("awake")
		} else {
			onStatus("not responding")
		}
	}
	return ok
}

// Probes returns how many times Alive was called.
func (w *MockWarmer) Probes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.probes
}

// WakeCalls returns how many times Wake was called.
func (w *MockWarmer) WakeCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wakeCalls
}
