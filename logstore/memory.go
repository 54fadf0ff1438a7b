package logstore

import (
	"context"
	"sync"
)

const defaultCapacity = 1000

// MemoryStore keeps the newest entries in memory. Once capacity is
// exceeded the oldest entry is evicted (FIFO). Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	cap     int
	entries []Entry
}

// NewMemoryStore builds a store holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryStore{cap: capacity}
}

func (s *MemoryStore) Append(_ context.Context, e Entry) error {
	e = stamp(e)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.cap {
		// Shift instead of re-slicing so the backing array stays bounded.
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:s.cap]
	}
	return nil
}

// Entries returns stored entries newest-first.
func (s *MemoryStore) Entries(_ context.Context, limit, offset int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	n := len(s.entries)
	if offset < 0 {
		offset = 0
	}
	if offset >= n {
		return nil, nil
	}
	// entries is oldest-first internally; walk it backwards.
	out := make([]Entry, 0, limit)
	for i := n - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
