package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist invalidates tokens before they expire (logout, role change).
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeUser rejects every token of the user issued up to now.
	RevokeUser(ctx context.Context, userID uint, ttl time.Duration) error
	IsUserRevoked(ctx context.Context, userID uint, issuedAt time.Time) (bool, error)
}

type RedisBlacklist struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client, keyPrefix: "gooms:blacklist:"}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.keyPrefix+"jti:"+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, b.keyPrefix+"jti:"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token blacklist: %w", err)
	}
	return n > 0, nil
}

func (b *RedisBlacklist) RevokeUser(ctx context.Context, userID uint, ttl time.Duration) error {
	key := b.keyPrefix + "user:" + strconv.FormatUint(uint64(userID), 10)
	if err := b.client.Set(ctx, key, time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) IsUserRevoked(ctx context.Context, userID uint, issuedAt time.Time) (bool, error) {
	key := b.keyPrefix + "user:" + strconv.FormatUint(uint64(userID), 10)
	cutoff, err := b.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user revocation: %w", err)
	}
	return issuedAt.Unix() <= cutoff, nil
}

var _ TokenBlacklist = (*RedisBlacklist)(nil)

// MemoryBlacklist is used when redis is disabled. Entries are per process.
type MemoryBlacklist struct {
	mu    sync.Mutex
	jtis  map[string]time.Time // jti -> expiry
	users map[uint]revocation
}

type revocation struct {
	at      time.Time
	expires time.Time
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{
		jtis:  make(map[string]time.Time),
		users: make(map[uint]revocation),
	}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jtis[jti] = time.Now().Add(ttl)
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	exp, ok := b.jtis[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(b.jtis, jti)
		return false, nil
	}
	return true, nil
}

func (b *MemoryBlacklist) RevokeUser(_ context.Context, userID uint, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.users[userID] = revocation{at: now, expires: now.Add(ttl)}
	return nil
}

func (b *MemoryBlacklist) IsUserRevoked(_ context.Context, userID uint, issuedAt time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.users[userID]
	if !ok {
		return false, nil
	}
	if time.Now().After(r.expires) {
		delete(b.users, userID)
		return false, nil
	}
	// JWT timestamps have second precision.
	return issuedAt.Unix() <= r.at.Unix(), nil
}

var _ TokenBlacklist = (*MemoryBlacklist)(nil)
