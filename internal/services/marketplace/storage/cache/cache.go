// Package cache provides a Redis read-through cache in front of listing reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	keyListing = "shoppal:listing:"
	// DefaultTTL bounds how long a cached listing may be served.
	DefaultTTL = 5 * time.Minute
)

// Backend is the key/value surface the cache needs.
type Backend interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisBackend adapts a go-redis client to Backend.
type RedisBackend struct {
	rdb redis.UniversalClient
}

// NewRedisBackend returns a Backend over rdb.
func NewRedisBackend(rdb redis.UniversalClient) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

// Get reads one key.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set writes one key with expiry.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete removes keys.
func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.rdb.Del(ctx, keys...).Err()
}

// Store wraps a storage.Store, serving GetListing from the cache and
// invalidating on listing writes. Cache failures fall back to the store.
type Store struct {
	storage.Store
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
	sf      singleflight.Group
}

// New wraps next with a read cache.
func New(next storage.Store, backend Backend, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Store: next, backend: backend, ttl: ttl, logger: logger}
}

func listingKey(listingID string) string {
	return keyListing + listingID
}

// GetListing returns one listing, collapsing concurrent misses for the same id.
func (s *Store) GetListing(ctx context.Context, listingID string) (storage.ListingRecord, error) {
	if s.backend == nil {
		return s.Store.GetListing(ctx, listingID)
	}
	key := listingKey(listingID)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		if cached, ok := s.read(ctx, key); ok {
			return cached, nil
		}
		listing, err := s.Store.GetListing(ctx, listingID)
		if err != nil {
			return storage.ListingRecord{}, err
		}
		s.write(ctx, key, listing)
		return listing, nil
	})
	if err != nil {
		return storage.ListingRecord{}, err
	}
	return v.(storage.ListingRecord), nil
}

// UpdateListing writes through and drops the cached copy.
func (s *Store) UpdateListing(ctx context.Context, listing storage.ListingRecord) error {
	if err := s.Store.UpdateListing(ctx, listing); err != nil {
		return err
	}
	s.invalidate(ctx, listing.ID)
	return nil
}

// DeleteListing deletes through and drops the cached copy.
func (s *Store) DeleteListing(ctx context.Context, listingID string) error {
	if err := s.Store.DeleteListing(ctx, listingID); err != nil {
		return err
	}
	s.invalidate(ctx, listingID)
	return nil
}

func (s *Store) read(ctx context.Context, key string) (storage.ListingRecord, bool) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "listing cache read failed", "key", key, "error", err)
		return storage.ListingRecord{}, false
	}
	if !ok {
		return storage.ListingRecord{}, false
	}
	var listing storage.ListingRecord
	if err := json.Unmarshal(raw, &listing); err != nil {
		s.logger.WarnContext(ctx, "listing cache entry corrupt", "key", key, "error", err)
		return storage.ListingRecord{}, false
	}
	return listing, true
}

func (s *Store) write(ctx context.Context, key string, listing storage.ListingRecord) {
	raw, err := json.Marshal(listing)
	if err != nil {
		s.logger.WarnContext(ctx, "listing cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.backend.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "listing cache write failed", "key", key, "error", err)
	}
}

func (s *Store) invalidate(ctx context.Context, listingID string) {
	if s.backend == nil {
		return
	}
	key := listingKey(listingID)
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "listing cache invalidate failed", "key", key, "error", err)
	}
}
