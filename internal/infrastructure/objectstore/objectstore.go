package objectstore

import (
	"sync"

	"go.uber.org/zap"
)

// ObjectStore is a concurrent, in-memory KV indexed by string IDs.
//
// Iteration is deterministic (insertion order). Reads use shared (R) locks;
// writes use exclusive (W) locks.
//
// Typical costs:
//   - Insert/Replace: O(1)
//   - Delete: O(n) for slice compaction
//   - Get: O(1); List: O(n)
//
// Semantics:
//   - Values are stored *as provided*, without deep copying.
//   - Callers storing pointers must not mutate them after insertion.
type ObjectStore[V any] struct {
	log *zap.Logger

	mu sync.RWMutex // guards st
	st storeState[V]
}

type storeState[V any] struct {
	byID map[string]V
	ids  []string
	pos  map[string]int
}

// New constructs a ready-to-use ObjectStore.
func New[V any](log *zap.Logger) *ObjectStore[V] {
	if log == nil {
		log = zap.NewNop()
	}
	return &ObjectStore[V]{
		log: log,
		st: storeState[V]{
			byID: make(map[string]V),
			ids:  make([]string, 0),
			pos:  make(map[string]int),
		},
	}
}

// Insert adds value under id. Returns false if id already exists.
func (s *ObjectStore[V]) Insert(id string, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.pos[id]; exists {
		return false
	}
	s.st.ids = append(s.st.ids, id)
	s.st.byID[id] = value
	s.st.pos[id] = len(s.st.ids) - 1
	return true
}

// Replace overwrites value at id, keeping its position. Returns false if
// id is absent.
func (s *ObjectStore[V]) Replace(id string, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.pos[id]; !exists {
		return false
	}
	s.st.byID[id] = value
	return true
}

// Delete removes id. Returns false if it was absent.
func (s *ObjectStore[V]) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.st.pos[id]
	if !ok {
		return false
	}

	delete(s.st.byID, id)
	delete(s.st.pos, id)

	copy(s.st.ids[idx:], s.st.ids[idx+1:])
	s.st.ids = s.st.ids[:len(s.st.ids)-1]

	// Update positions for shifted tail.
	for i := idx; i < len(s.st.ids); i++ {
		s.st.pos[s.st.ids[i]] = i
	}
	return true
}

// Get returns (value, ok).
func (s *ObjectStore[V]) Get(id string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.st.byID[id]
	return val, ok
}

// List returns all values in insertion order; the slice is a copy.
func (s *ObjectStore[V]) List() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]V, len(s.st.ids))
	for i, id := range s.st.ids {
		out[i] = s.st.byID[id]
	}
	return out
}

// Len returns the number of stored values.
func (s *ObjectStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.ids)
}
