// Package cache holds short-lived JSON snapshots (the catalog listing) in
// Redis, or in process memory when CACHE_DRIVER=memory or Redis is down.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a byte-level TTL cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Driver() string
}

var (
	mu      sync.RWMutex
	current Store = NewMemoryStore()
)

// Connect selects the store from CACHE_DRIVER. A failing Redis ping falls
// back to the memory store and returns the ping error for the caller to log.
func Connect() error {
	if config.CacheDriver() != "redis" {
		Use(NewMemoryStore())
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		Use(NewMemoryStore())
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	Use(NewRedisStore(rdb))
	return nil
}

// Use replaces the active store.
func Use(s Store) {
	mu.Lock()
	current = s
	mu.Unlock()
}

func active() Store {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Get unmarshals the cached value into dest. Returns true on a hit.
func Get(ctx context.Context, key string, dest any) bool {
	s := active()
	raw, err := s.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(s.Driver()).Inc()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		metrics.CacheMisses.WithLabelValues(s.Driver()).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(s.Driver()).Inc()
	return true
}

// Set stores value as JSON for ttl.
func Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return active().Set(ctx, key, data, ttl)
}

// Del removes one or more keys.
func Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return active().Del(ctx, keys...)
}

// Remember returns the cached value for key, or calls load, caches its
// result for ttl and returns it.
func Remember[T any](ctx context.Context, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var v T
	if Get(ctx, key, &v) {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	_ = Set(ctx, key, v, ttl)
	return v, nil
}

// ─── Redis ────────────────────────────────────────────────────────────────────

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStore) Driver() string { return "redis" }

// ─── Memory ───────────────────────────────────────────────────────────────────

type memoryItem struct {
	value   []byte
	expires time.Time
}

type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrMiss
	}
	if !item.expires.IsZero() && s.now().After(item.expires) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, ErrMiss
	}
	return item.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = item
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.items, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Driver() string { return "memory" }
