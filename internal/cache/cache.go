// Package cache implements the two-tier cache used by settings and price lookups.
// L1 is an in-process map scoped to one run; L2 is a durable Store with TTL.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// DefaultTTL applies when Put is given a non-positive ttl
	DefaultTTL = 15 * time.Minute
	// MaxL2Payload is the largest encoded value written to L2
	MaxL2Payload = 100 * 1024
)

// Metrics receives hit/miss observations; nil disables reporting
type Metrics interface {
	ObserveLookup(tier, result string)
}

// Cache is a run-scoped two-tier cache. Create a new one per run; the L2 Store
// is shared between runs.
type Cache struct {
	mu      sync.RWMutex
	l1      map[string][]byte
	l2      Store
	metrics Metrics
	log     zerolog.Logger
}

// New creates an empty run-scoped cache over the given L2 store. l2 may be nil.
func New(l2 Store, metrics Metrics, log zerolog.Logger) *Cache {
	return &Cache{
		l1:      make(map[string][]byte),
		l2:      l2,
		metrics: metrics,
		log:     log.With().Str("component", "cache").Logger(),
	}
}

// Get decodes the cached value for key into out. bypass forces a miss without
// touching either tier. An L2 hit is promoted into L1.
func (c *Cache) Get(ctx context.Context, key string, out interface{}, bypass bool) bool {
	if bypass {
		c.observe("bypass", "miss")
		return false
	}

	c.mu.RLock()
	data, ok := c.l1[key]
	c.mu.RUnlock()
	if ok {
		if err := msgpack.Unmarshal(data, out); err == nil {
			c.observe("l1", "hit")
			return true
		}
		c.log.Warn().Str("key", key).Msg("Dropping undecodable L1 entry")
		c.mu.Lock()
		delete(c.l1, key)
		c.mu.Unlock()
	}

	if c.l2 == nil {
		c.observe("l2", "miss")
		return false
	}

	data, ok, err := c.l2.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("L2 cache read failed")
		c.observe("l2", "error")
		return false
	}
	if !ok {
		c.observe("l2", "miss")
		return false
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Undecodable L2 entry")
		c.observe("l2", "error")
		return false
	}

	c.mu.Lock()
	c.l1[key] = data
	c.mu.Unlock()
	c.observe("l2", "hit")
	return true
}

// Put stores value in L1 and, if its encoding fits MaxL2Payload, in L2.
// A nil value is ignored. L2 write failures are logged, not returned.
func (c *Cache) Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value %s: %w", key, err)
	}

	c.mu.Lock()
	c.l1[key] = data
	c.mu.Unlock()

	if c.l2 == nil {
		return nil
	}
	if len(data) >= MaxL2Payload {
		c.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("Value too large for L2, kept in L1 only")
		return nil
	}
	if err := c.l2.Set(ctx, key, data, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("L2 cache write failed")
	}
	return nil
}

// Remove deletes key from both tiers
func (c *Cache) Remove(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.l1, key)
	c.mu.Unlock()

	if c.l2 == nil {
		return
	}
	if err := c.l2.Delete(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("L2 cache delete failed")
	}
}

func (c *Cache) observe(tier, result string) {
	if c.metrics != nil {
		c.metrics.ObserveLookup(tier, result)
	}
}
