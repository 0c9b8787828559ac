package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

type lruEntry struct {
	data      []byte
	expiresAt time.Time
}

// LRUListCache keeps list results in process memory. It is used when no Redis
// is configured; peers are kept coherent through catalog events.
type LRUListCache struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

func NewLRUListCache(size int, ttl time.Duration) *LRUListCache {
	if size <= 0 {
		size = 512
	}
	return &LRUListCache{lru: lru.New(size), ttl: ttl, now: time.Now}
}

func (c *LRUListCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	v, ok := c.lru.Get(key)
	if ok {
		entry := v.(lruEntry)
		if c.ttl > 0 && c.now().After(entry.expiresAt) {
			c.lru.Remove(key)
			ok = false
		} else {
			c.mu.Unlock()
			return true, json.Unmarshal(entry.data, dst)
		}
	}
	c.mu.Unlock()
	return ok, nil
}

func (c *LRUListCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, lruEntry{data: data, expiresAt: c.now().Add(c.ttl)})
	return nil
}

func (c *LRUListCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.lru.Remove(k)
	}
	return nil
}
