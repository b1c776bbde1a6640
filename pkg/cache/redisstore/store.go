// Package redisstore is a cache generation kept in Redis. Entries expire
// natively; readers still check ExpiresAt.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pario-ai/vendorsearch/pkg/cache"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

var (
	_ cache.Generation = (*Store)(nil)
	_ cache.Clearer    = (*Store)(nil)
	_ cache.Counter    = (*Store)(nil)
)

// Options configures a Redis cache generation.
type Options struct {
	Name     string
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store keeps one JSON document per cache key.
type Store struct {
	name   string
	prefix string
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.Name, opts.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, name, prefix string) *Store {
	if name == "" {
		name = "redis"
	}
	if prefix == "" {
		prefix = "vendorsearch"
	}
	return &Store{name: name, prefix: prefix, client: client}
}

// Name returns the generation name.
func (s *Store) Name() string { return s.name }

func (s *Store) keyFor(key models.CacheKey) string {
	return s.prefix + ":" + string(key)
}

// Lookup returns the stored entry for key if it is successful and unexpired.
func (s *Store) Lookup(ctx context.Context, key models.CacheKey, now time.Time) (*models.CacheEntry, error) {
	val, err := s.client.Get(ctx, s.keyFor(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := decode(val)
	if err != nil {
		return nil, err
	}
	if !entry.IsSuccessful || entry.Expired(now) {
		return nil, nil
	}
	return entry, nil
}

// Save stores entry until its ExpiresAt. Entries already expired are not written.
// A newer write for the same key replaces the older one.
func (s *Store) Save(ctx context.Context, entry models.CacheEntry, opts cache.SaveOptions) error {
	ttl := ttlFor(entry, time.Now())
	if ttl <= 0 {
		return nil
	}
	data, err := encode(entry, opts)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.keyFor(entry.Key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Count returns the number of keys under the prefix.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

// Clear deletes keys under the prefix. Expired keys are evicted by Redis
// itself, so expiredOnly removes nothing.
func (s *Store) Clear(ctx context.Context, expiredOnly bool, _ time.Time) (int64, error) {
	if expiredOnly {
		return 0, nil
	}
	var removed int64
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 500).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("redis del: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func ttlFor(entry models.CacheEntry, now time.Time) time.Duration {
	return entry.ExpiresAt.Sub(now)
}

func encode(entry models.CacheEntry, opts cache.SaveOptions) ([]byte, error) {
	if opts.SkipOptional {
		entry.Cost = 0
		entry.APIResponseTimeMs = 0
		entry.Synthetic = false
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &entry, nil
}
