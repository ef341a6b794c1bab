package cache

import (
	"context"
	"sync"
	"time"

	"commerce/navigation/internal/domain"
)

type memoryEntry struct {
	tree     domain.Tree
	storedAt time.Time
}

// MemoryStore keeps trees in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	generation uint64
	entries    map[string]memoryEntry
	ttl        time.Duration
	now        func() time.Time
}

// NewMemoryStore creates an in-process store. A zero ttl keeps entries
// until the next invalidation.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Generation(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (domain.Tree, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return domain.Tree{}, false, nil
	}
	if s.ttl > 0 && s.now().Sub(entry.storedAt) > s.ttl {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return domain.Tree{}, false, nil
	}
	return entry.tree, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, generation uint64, tree domain.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// built before the last invalidation
	if generation != s.generation {
		return nil
	}
	s.entries[key] = memoryEntry{tree: tree, storedAt: s.now()}
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.entries = make(map[string]memoryEntry)
	return nil
}

// Len reports the number of stored trees.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
