// Package cache provides a time-bounded in-process key/value store used to
// avoid recomputing analysis results and re-decoding customer embeddings.
// Entries expire lazily on read; there is no background sweep.
package cache

import (
	"sync"
	"time"
)

// Key prefixes separate the two logical namespaces sharing one store.
const (
	analysisPrefix  = "analysis_result:"
	embeddingPrefix = "customer_embedding:"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Store is a TTL-keyed cache safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time // injectable for tests
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

// Get returns the cached value for key, or false if absent or expired.
// Expired entries are removed on read.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; another goroutine may have refreshed it.
		if cur, ok := s.items[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given lifetime, overwriting any
// previous entry.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	s.items[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

// GetOrCompute returns the cached value for key if present and unexpired;
// otherwise it calls compute, stores the result, and returns it. A compute
// error is returned to the caller and nothing is cached.
func (s *Store) GetOrCompute(key string, ttl time.Duration, compute func() (any, error)) (any, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	s.Set(key, v, ttl)
	return v, nil
}

// Delete removes key from the store.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns the number of entries, including any not yet lazily expired.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// AnalysisKey builds the analysis-result cache key for an embedding fingerprint.
func AnalysisKey(fingerprint string) string {
	return analysisPrefix + fingerprint
}

// EmbeddingKey builds the per-customer embedding cache key.
func EmbeddingKey(customerID string) string {
	return embeddingPrefix + customerID
}
