package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps values in a map guarded by a mutex.
// Keys and values both count against the quota.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]string
	used     int
	quota    int
	disabled bool
}

// NewMemoryStore creates a store limited to quotaBytes.
// A quota <= 0 disables the limit.
func NewMemoryStore(quotaBytes int) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]string),
		quota: quotaBytes,
	}
}

// SetDisabled makes every operation fail with ErrUnavailable, the way
// storage behaves in some private browsing modes.
func (s *MemoryStore) SetDisabled(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = disabled
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disabled {
		return "", ErrUnavailable
	}
	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return ErrUnavailable
	}

	used := s.used
	if old, ok := s.data[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)

	if s.quota > 0 && used > s.quota {
		return fmt.Errorf("%w: %d bytes over %d byte limit", ErrQuotaExceeded, used, s.quota)
	}

	s.data[key] = value
	s.used = used
	return nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return ErrUnavailable
	}
	if old, ok := s.data[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.data, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Used returns the bytes currently counted against the quota.
func (s *MemoryStore) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}
