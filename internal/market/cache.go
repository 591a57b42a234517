package market

import (
	"sync"
	"time"
)

// SummaryCache provides in-memory caching for market aggregates
type SummaryCache struct {
	data    map[string]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
}

type cacheEntry struct {
	value      *MarketSummary
	expiration time.Time
}

// NewSummaryCache creates a summary cache with the given TTL
func NewSummaryCache(ttl time.Duration) *SummaryCache {
	cache := &SummaryCache{
		data:    make(map[string]*cacheEntry),
		ttl:     ttl,
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// Get retrieves a summary from the cache
func (c *SummaryCache) Get(key string) (*MarketSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiration) {
		return nil, false
	}

	return entry.value, true
}

// Set stores a summary in the cache
func (c *SummaryCache) Set(key string, value *MarketSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}
}

// Invalidate removes a cached summary
func (c *SummaryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
}

// Size returns the number of entries in the cache
func (c *SummaryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

func (c *SummaryCache) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *SummaryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (c *SummaryCache) Stop() {
	c.cleanup.Stop()
	close(c.done)
}
