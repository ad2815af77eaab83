package storage

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no sequence is stored under a name.
var ErrNotFound = errors.New("storage: sequence not found")

// Store persists whole sequences under a name.
// All implementations must be safe for concurrent use.
type Store interface {
	// Save stores seq under name, replacing any previous sequence.
	Save(name string, seq []int8) error

	// Load returns the sequence stored under name.
	// Returns ErrNotFound if nothing is stored there.
	Load(name string) ([]int8, error)

	// Stats returns cumulative save statistics.
	Stats() StoreStats
}

// StoreStats counts what a store has written since it was created.
type StoreStats struct {
	Saves    int   // Number of successful Save calls
	Elements int64 // Total elements written by those calls
}

// MemoryStore keeps sequences in memory. Used by tests and by runs that
// only need the digest.
type MemoryStore struct {
	data  map[string][]int8 // Name -> sequence
	stats StoreStats
	mu    sync.RWMutex // Protects data and stats
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]int8),
	}
}

// Save keeps a copy of seq so later changes by the caller are not visible.
func (m *MemoryStore) Save(name string, seq []int8) error {
	stored := make([]int8, len(seq))
	copy(stored, seq)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = stored
	m.stats.Saves++
	m.stats.Elements += int64(len(seq))
	return nil
}

// Load returns a copy of the stored sequence.
func (m *MemoryStore) Load(name string) ([]int8, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seq, ok := m.data[name]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	out := make([]int8, len(seq))
	copy(out, seq)
	return out, nil
}

// Stats returns cumulative save statistics.
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
