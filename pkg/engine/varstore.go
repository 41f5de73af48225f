package engine

import "sync"

// varStore is the run-scoped mutable variable store. Writes to the same name
// from concurrent branches are serialized by the lock; distinct names are not
// otherwise ordered (last write wins by completion order).
type varStore struct {
	mu     sync.RWMutex
	values map[string]any
}

func newVarStore(initial map[string]any) *varStore {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}

	return &varStore{values: values}
}

func (s *varStore) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[name]

	return v, ok
}

func (s *varStore) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[name] = value
}

func (s *varStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}

	return out
}
