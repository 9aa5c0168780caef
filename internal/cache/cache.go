// Package cache stores derived chat aggregates (statistics) so the backend
// does not recompute them on every request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/memoryvault/memory-vault/internal/metrics"
)

// Cache is a byte-value store with per-key expiry.
type Cache interface {
	// Get returns found=false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// StatisticsKey is the cache key for a chat's statistics.
func StatisticsKey(chatID string) string { return "vault:stats:" + chatID }

// GetJSON decodes a cached JSON value into out. Lookups are counted in
// metrics as hit, miss or error.
func GetJSON(ctx context.Context, c Cache, key string, out any) (bool, error) {
	raw, found, err := c.Get(ctx, key)
	if err != nil {
		metrics.ObserveCacheLookup("error")
		return false, err
	}
	if !found {
		metrics.ObserveCacheLookup("miss")
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		metrics.ObserveCacheLookup("error")
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	metrics.ObserveCacheLookup("hit")
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Cache. A zero ttl means no expiry.
type Memory struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{items: map[string]entry{}, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}
