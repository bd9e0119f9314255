package credentials

import (
	"context"
	"time"
)

// DefaultCacheTTL bounds how long a cached credential may be served without
// consulting the authoritative store.
const DefaultCacheTTL = 1 * time.Hour

// cacheKeyPrefix namespaces cache entries. Usernames containing ':' could in
// principle collide with other key families sharing the instance; the broker
// rejects such usernames upstream today, so no escaping is applied here.
const cacheKeyPrefix = "cred:"

// Cache is a TTL-bounded, advisory view of Store lookups. It is never the system
// of record: every implementation error degrades to a miss, and all decision paths
// must remain correct when the cache is NoopCache.
type Cache interface {
	// Get returns the cached credential for username, or (nil, nil) on a miss.
	// Expired entries are never returned; reading one deletes it (lazy expiry).
	Get(ctx context.Context, username string) (*Credential, error)

	// Set stores the credential with the cache TTL, overwriting any prior entry.
	Set(ctx context.Context, cred *Credential) error

	// Invalidate unconditionally removes the entry for username.
	Invalidate(ctx context.Context, username string) error
}

// cacheEntry is the stored representation: the credential plus its absolute
// expiry, checked at read time.
type cacheEntry struct {
	Credential Credential `json:"credential"`
	ExpiresAt  int64      `json:"expires_at"`
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.Unix() > e.ExpiresAt
}

func cacheKey(username string) string {
	return cacheKeyPrefix + username
}

// NoopCache disables caching: every read is a miss and every write succeeds. It is
// both the disabled-cache deployment mode and a test double.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, username string) (*Credential, error) { return nil, nil }
func (NoopCache) Set(ctx context.Context, cred *Credential) error               { return nil }
func (NoopCache) Invalidate(ctx context.Context, username string) error         { return nil }
