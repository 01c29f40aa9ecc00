package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

type fakeRemote struct {
	mu          sync.Mutex
	entries     map[string]core.CacheEntry
	getAllCalls int
	putCalls    int
	failPut     bool
}

var _ storage.RemoteCache = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{entries: make(map[string]core.CacheEntry)}
}

func (f *fakeRemote) CheckConnection(ctx context.Context) storage.ConnectionStatus {
	return storage.ConnectionStatus{Connected: true}
}

func (f *fakeRemote) GetAll(ctx context.Context) []core.CacheEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getAllCalls++
	out := make([]core.CacheEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out
}

func (f *fakeRemote) Get(ctx context.Context, id string, fp core.Fingerprint) (*core.CacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || e.Fingerprint != fp {
		return nil, false
	}
	return &e, true
}

func (f *fakeRemote) Put(ctx context.Context, entry core.CacheEntry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.failPut || core.ValidateCacheEntry(entry) != nil {
		return false
	}
	f.entries[entry.RecordID] = entry
	return true
}

func (f *fakeRemote) put(entry core.CacheEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.RecordID] = entry
}

func (f *fakeRemote) entry(id string) (core.CacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	return e, ok
}

func (f *fakeRemote) counts() (getAll, put int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getAllCalls, f.putCalls
}

type fakeLocal struct {
	mu      sync.Mutex
	snap    *core.LocalCacheSnapshot
	expired bool
	loads   int
	saves   int
}

var _ storage.LocalCache = (*fakeLocal)(nil)

func (f *fakeLocal) IsValid(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap != nil && !f.expired
}

func (f *fakeLocal) Load(ctx context.Context) (*core.LocalCacheSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.snap == nil || f.expired {
		return nil, false
	}
	return f.snap, true
}

func (f *fakeLocal) Save(ctx context.Context, entries map[string]core.CacheEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.expired = false
	f.snap = &core.LocalCacheSnapshot{Entries: entries, CreatedAt: time.Now()}
}

func (f *fakeLocal) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = nil
	return nil
}

func (f *fakeLocal) Age(ctx context.Context) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return 0, false
	}
	return time.Since(f.snap.CreatedAt), true
}

func (f *fakeLocal) entries() map[string]core.CacheEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return nil
	}
	return f.snap.Entries
}

func (f *fakeLocal) counts() (loads, saves int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads, f.saves
}
