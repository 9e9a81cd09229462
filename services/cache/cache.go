package cache

import (
	"time"
)

// CacheService represents a generic cache service. The crawler uses it as a
// page content cache keyed by the exact request URL, so callers that need
// fresh data must vary the URL (e.g. with a datestamp parameter).
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}
