package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/pkg/redis"
)

// RedisStore keeps the snapshot under one Redis key that expires after a day
type RedisStore struct {
	cache *redis.Cache
	key   string
	ttl   time.Duration
}

// NewRedisStore stores the snapshot through c
func NewRedisStore(c *redis.Cache) *RedisStore {
	return &RedisStore{
		cache: c,
		key:   redis.SnapshotKey("results"),
		ttl:   redis.TTLDaily,
	}
}

// Name identifies the backend in status output
func (s *RedisStore) Name() string { return "redis:" + s.key }

// Load reads the snapshot. A missing key is an empty snapshot.
func (s *RedisStore) Load(ctx context.Context) ([]cache.CacheEntry, error) {
	var doc document
	found, err := s.cache.Get(ctx, s.key, &doc)
	if err != nil {
		return nil, fmt.Errorf("redis snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return doc.Entries, nil
}

// Save overwrites the snapshot and refreshes its TTL. An empty entry list
// deletes the key.
func (s *RedisStore) Save(ctx context.Context, entries []cache.CacheEntry) error {
	if len(entries) == 0 {
		return s.cache.Delete(ctx, s.key)
	}
	doc := document{SavedAt: time.Now().UTC(), Entries: entries}
	if err := s.cache.Set(ctx, s.key, doc, s.ttl); err != nil {
		return fmt.Errorf("redis snapshot: %w", err)
	}
	return nil
}
