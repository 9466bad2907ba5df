package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemCacheStore keeps entries in a process-local LRU. Used when no redis is configured, and in tests.
type MemCacheStore struct {
	entries *expirable.LRU[string, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

// NewMemCacheStore holds up to capacity entries, each for at most ttl. Zero means no limit for either.
func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		entries: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func entryKey(name, key string) string {
	return name + "/" + key
}

func (s *MemCacheStore) Get(_ context.Context, name, key string) (string, error) {
	v, _ := s.entries.Get(entryKey(name, key))
	return v, nil
}

func (s *MemCacheStore) Set(_ context.Context, name, key string, val string) error {
	s.entries.Add(entryKey(name, key), val)
	return nil
}

func (s *MemCacheStore) Purge(_ context.Context, name, key string) error {
	s.entries.Remove(entryKey(name, key))
	return nil
}

// Len is the number of live entries.
func (s *MemCacheStore) Len() int {
	return s.entries.Len()
}
