package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations records signed-out token ids until they expire.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocations keeps revoked token ids in process memory.
type MemoryRevocations struct {
	mu      sync.Mutex
	now     func() time.Time
	revoked map[string]time.Time
}

// NewMemoryRevocations returns an empty in-memory revocation set.
func NewMemoryRevocations(now func() time.Time) *MemoryRevocations {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocations{now: now, revoked: map[string]time.Time{}}
}

// Revoke records tokenID until the given time.
func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return fmt.Errorf("token id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, expiry := range m.revoked {
		if !expiry.After(now) {
			delete(m.revoked, key)
		}
	}
	if until.After(now) {
		m.revoked[tokenID] = until
	}
	return nil
}

// IsRevoked reports whether tokenID is currently revoked.
func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.revoked[tokenID]
	return ok && expiry.After(m.now()), nil
}

const revokedKeyPrefix = "shoppal:revoked:"

// RedisRevocations stores revoked token ids as expiring Redis keys so every
// instance sees a sign-out.
type RedisRevocations struct {
	rdb redis.UniversalClient
	now func() time.Time
}

// NewRedisRevocations returns a Redis-backed revocation set.
func NewRedisRevocations(rdb redis.UniversalClient, now func() time.Time) *RedisRevocations {
	if now == nil {
		now = time.Now
	}
	return &RedisRevocations{rdb: rdb, now: now}
}

// Revoke records tokenID until the given time.
func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return fmt.Errorf("token id is required")
	}
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is currently revoked.
func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}
