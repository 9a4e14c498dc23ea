package repository

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	timestamps []int64
	touched    time.Time
	ttl        time.Duration
}

// MemoryStore keeps timestamps in process memory. It is the default store for a
// single instance; entries for clients that go quiet are dropped by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

// NewMemoryStore returns an in-memory Store for local development/testing.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		return nil, nil
	}
	out := make([]int64, len(e.timestamps))
	copy(out, e.timestamps)
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, timestamps []int64, ttl time.Duration) error {
	arr := make([]int64, len(timestamps))
	copy(arr, timestamps)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &memEntry{timestamps: arr, touched: m.now(), ttl: ttl}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len reports how many client keys are currently held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes entries whose ttl has lapsed, and entries not written since
// idleCutoff. It returns the number of removed keys.
func (m *MemoryStore) Sweep(idleCutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.entries {
		if m.expired(e) || e.touched.Before(idleCutoff) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps idle entries every interval until ctx is done.
func (m *MemoryStore) StartJanitor(ctx context.Context, every, idle time.Duration, onSweep func(removed int)) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n := m.Sweep(m.now().Add(-idle))
				if onSweep != nil && n > 0 {
					onSweep(n)
				}
			}
		}
	}()
}

func (m *MemoryStore) expired(e *memEntry) bool {
	return e.ttl > 0 && m.now().Sub(e.touched) > e.ttl
}
