package syncapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache remembers action ids that were committed, so replays can be answered
// without a database round trip. The applied_actions table stays the source
// of truth: Remember is only called after commit, and a miss always falls
// through to the database.
type Cache interface {
	Seen(ctx context.Context, id string) (bool, error)
	Remember(ctx context.Context, id string, ttl time.Duration) error
}

type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, keyPrefix: "gooms:sync:applied:"}
}

func (s *RedisCache) Seen(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("check applied action %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *RedisCache) Remember(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+id, time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("remember applied action %s: %w", id, err)
	}
	return nil
}

var _ Cache = (*RedisCache)(nil)

// MemoryCache is used when redis is disabled. Entries are per process.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time // id -> expiry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryCache) Seen(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.entries, id)
		return false, nil
	}
	return true, nil
}

func (s *MemoryCache) Remember(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.entries[id] = now.Add(ttl)
	s.sweep(now)
	return nil
}

// sweep drops expired entries. Caller holds mu.
func (s *MemoryCache) sweep(now time.Time) {
	if len(s.entries) < 1024 {
		return
	}
	for id, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, id)
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
