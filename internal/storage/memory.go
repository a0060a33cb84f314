package storage

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	deadline  time.Time
	expiresAt time.Time
}

// MemoryStore is an in-process DeadlineStore. Entries expire lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// NewMemoryStore builds a MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

// Load returns the stored deadline or ErrNotFound if missing or past its ttl.
func (s *MemoryStore) Load(_ context.Context, key string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.clock().Before(entry.expiresAt) {
		delete(s.entries, key)
		return time.Time{}, ErrNotFound
	}
	return entry.deadline, nil
}

// Save stores the deadline. A non-positive ttl keeps it until deleted.
func (s *MemoryStore) Save(_ context.Context, key string, deadline time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{deadline: deadline}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// Delete removes the key. Missing keys are not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of entries, including ones not yet evicted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
