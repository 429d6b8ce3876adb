package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore holds at most one record in memory. Loads counts calls to
// LoadResumeState.
type MemoryStore struct {
	mu    sync.Mutex
	rec   *Record
	Loads int
	Saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith returns a store preloaded with rec.
func NewMemoryStoreWith(rec Record) *MemoryStore {
	return &MemoryStore{rec: &rec}
}

func (s *MemoryStore) LoadResumeState(ctx context.Context) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Loads++
	if s.rec == nil {
		return Record{}, false, nil
	}
	return *s.rec, true, nil
}

func (s *MemoryStore) SaveState(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Saves++
	s.rec = &rec
	return nil
}

// Last returns the most recently saved record.
func (s *MemoryStore) Last() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec == nil {
		return Record{}, false
	}
	return *s.rec, true
}
