package internal

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DocumentCache holds the last-known snapshot per document ID.
// It is derived state: dropping it loses nothing the Store and Gateway cannot rebuild.
//
// A hit on a non-terminal document returns the existing value without
// contacting the backend; callers that need live status use Controller.Refresh.
type DocumentCache struct {
	cache *cache.Cache
}

// NewDocumentCache creates a cache. A ttl of zero keeps entries until invalidated.
func NewDocumentCache(ttl time.Duration) *DocumentCache {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}
	return &DocumentCache{
		cache: cache.New(expiration, cleanup),
	}
}

// Get returns the cached snapshot for id
func (c *DocumentCache) Get(id string) (Document, bool) {
	if x, found := c.cache.Get(id); found {
		return x.(Document), true
	}
	return Document{}, false
}

// Put overwrites the snapshot for id
func (c *DocumentCache) Put(id string, doc Document) {
	c.cache.Set(id, doc, cache.DefaultExpiration)
}

// Invalidate removes the given entries, or every entry when called without ids
func (c *DocumentCache) Invalidate(ids ...string) {
	if len(ids) == 0 {
		c.cache.Flush()
		return
	}
	for _, id := range ids {
		c.cache.Delete(id)
	}
}

// Len returns the number of cached entries, including expired ones not yet purged
func (c *DocumentCache) Len() int {
	return c.cache.ItemCount()
}
