package credentials

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is an in-process bounded LRU alternative to RedisCache for
// single-node deployments. Same contract: lazy expiry at read time, advisory only.
type MemoryCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
}

// NewMemoryCache creates a cache holding at most size entries.
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &MemoryCache{entries: entries, ttl: ttl}, nil
}

// Get returns the cached credential for username, or (nil, nil) on a miss.
func (c *MemoryCache) Get(ctx context.Context, username string) (*Credential, error) {
	entry, ok := c.entries.Get(cacheKey(username))
	if !ok {
		return nil, nil
	}

	if entry.expired(time.Now()) {
		c.entries.Remove(cacheKey(username))
		return nil, nil
	}

	cred := entry.Credential
	return &cred, nil
}

// Set overwrites the entry for the credential's username with a fresh TTL.
func (c *MemoryCache) Set(ctx context.Context, cred *Credential) error {
	c.entries.Add(cacheKey(cred.Username), cacheEntry{
		Credential: *cred,
		ExpiresAt:  time.Now().Add(c.ttl).Unix(),
	})
	return nil
}

// Invalidate removes the entry for username.
func (c *MemoryCache) Invalidate(ctx context.Context, username string) error {
	c.entries.Remove(cacheKey(username))
	return nil
}
