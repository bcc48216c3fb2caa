package runstatus

import (
	"context"
	"sort"
	"sync"
)

// Store persists run snapshots.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, id string) (Snapshot, error)
	// List returns the most recently created runs first.
	List(ctx context.Context, limit int) ([]Snapshot, error)
	Close() error
}

// MemoryStore keeps snapshots for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Snapshot)}
}

func (m *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[snap.ID] = snap.clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.runs[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap.clone(), nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]Snapshot, error) {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.runs))
	for _, s := range m.runs {
		out = append(out, s.clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
