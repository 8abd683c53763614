// Package cache provides a small in-memory TTL cache.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached value with its expiry.
type Entry struct {
	Value      any
	Expiration time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.Expiration)
}

// MemoryCache is a RWMutex-guarded map of expiring entries. Expired entries
// are invisible to Get and removed by a janitor goroutine until Close.
type MemoryCache struct {
	mutex sync.RWMutex
	items map[string]*Entry
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryCache creates a cache whose Set uses ttl. A cleanupInterval of
// zero disables the janitor.
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items: make(map[string]*Entry),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	} else {
		close(c.done)
	}
	return c
}

// Set stores value under key with the default TTL.
func (c *MemoryCache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key for ttl. A non-positive ttl is not stored.
func (c *MemoryCache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items[key] = &Entry{Value: value, Expiration: c.now().Add(ttl)}
}

// Get returns the live value for key.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	e, ok := c.items[key]
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.Value, true
}

func (c *MemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
}

// Size counts stored entries, expired ones included until the next sweep.
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *MemoryCache) Sweep() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Close stops the janitor and waits for it to exit.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *MemoryCache) janitor(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
