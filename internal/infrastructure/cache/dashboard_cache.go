package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDashboardCache stores computed dashboards in Redis with a TTL
type RedisDashboardCache struct {
	client redis.UniversalClient
}

// NewRedisDashboardCache creates a cache on an existing client
func NewRedisDashboardCache(client redis.UniversalClient) *RedisDashboardCache {
	return &RedisDashboardCache{client: client}
}

// Get returns the cached value; ok is false on a miss
func (c *RedisDashboardCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read dashboard cache: %w", err)
	}
	return data, true, nil
}

// Set stores value for ttl
func (c *RedisDashboardCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write dashboard cache: %w", err)
	}
	return nil
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryDashboardCache stores computed dashboards in process memory.
// A background goroutine drops expired entries until Close is called.
type InMemoryDashboardCache struct {
	mu        sync.RWMutex
	entries   map[string]cacheEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDashboardCache creates an empty cache
func NewInMemoryDashboardCache() *InMemoryDashboardCache {
	c := &InMemoryDashboardCache{
		entries:  make(map[string]cacheEntry),
		stopChan: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Get returns the cached value; ok is false on a miss or an expired entry
func (c *InMemoryDashboardCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores a copy of value for ttl
func (c *InMemoryDashboardCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryDashboardCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// Size returns the number of stored entries, expired ones included
func (c *InMemoryDashboardCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryDashboardCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryDashboardCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
