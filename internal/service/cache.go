package service

import (
	"sync/atomic"
	"time"

	"mediagate/internal/video"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// InfoCache holds recently looked-up video information keyed by video id.
// Entries expire after ttl; the least recently used entry is evicted when full.
type InfoCache struct {
	lru    *expirable.LRU[string, *video.Info]
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// NewInfoCache creates a cache of at most size entries living for ttl.
func NewInfoCache(size int, ttl time.Duration) *InfoCache {
	if size <= 0 {
		size = 1
	}
	return &InfoCache{
		lru: expirable.NewLRU[string, *video.Info](size, nil, ttl),
		ttl: ttl,
	}
}

// Get returns the cached info for id if present and not expired.
func (c *InfoCache) Get(id string) (*video.Info, bool) {
	info, ok := c.lru.Get(id)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return info, ok
}

// Set stores info under id.
func (c *InfoCache) Set(id string, info *video.Info) {
	c.lru.Add(id, info)
}

// TTL returns the lifetime of an entry.
func (c *InfoCache) TTL() time.Duration {
	return c.ttl
}

// Len returns current cache size (number of entries)
func (c *InfoCache) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counts since creation.
func (c *InfoCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
