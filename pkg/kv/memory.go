package kv

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when redis is unavailable and as a
// test double. Update is serialized under the store mutex, so it provides the
// same lost-update protection as the redis transaction.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	value    string
	deadline time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

// lookup returns the live entry for key, dropping it if expired.
// Caller must hold mu.
func (s *MemoryStore) lookup(key string) (*memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	return e.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memoryEntry{value: value}
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	e, ok := s.lookup(key)
	if ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	if ok {
		e.value = strconv.FormatInt(n, 10)
	} else {
		s.entries[key] = &memoryEntry{value: strconv.FormatInt(n, 10)}
	}
	return n, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.lookup(key); ok {
		e.deadline = time.Now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.entries {
		if _, live := s.lookup(key); !live {
			continue
		}
		if ok, err := path.Match(pattern, key); err != nil {
			return nil, err
		} else if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, found := "", false
	if e, ok := s.lookup(key); ok {
		current, found = e.value, true
	}
	next, err := fn(current, found)
	if err != nil {
		return err
	}
	s.entries[key] = &memoryEntry{value: next}
	return nil
}
