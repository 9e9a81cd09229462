package crawler

import (
	"fmt"
	"sync"
	"testing"
	"time"

	errs "as24-worker/pkg/errors"

	"github.com/stretchr/testify/assert"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{cache: make(map[string][]byte)}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, fmt.Errorf("cache miss")
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// countingFetcher fails with the scripted errors before succeeding
type countingFetcher struct {
	calls  int
	errors []error
	body   string
}

func (c *countingFetcher) Fetch(url string) (string, error) {
	c.calls++
	if c.calls <= len(c.errors) {
		return "", c.errors[c.calls-1]
	}
	return c.body, nil
}

func fastRetry(next Fetcher) *RetryFetcher {
	return &RetryFetcher{
		Next:        next,
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}
}

func TestRetryFetcherRetriesRateLimit(t *testing.T) {
	next := &countingFetcher{
		errors: []error{
			errs.NewRateLimit("u", ""),
			errs.NewRateLimit("u", "30"),
		},
		body: "<html>ok</html>",
	}

	body, err := fastRetry(next).Fetch("https://example.com")
	assert.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
	assert.Equal(t, 3, next.calls)
}

func TestRetryFetcherRetriesTransportErrors(t *testing.T) {
	next := &countingFetcher{
		errors: []error{errs.NewFetch("u", "failed to fetch URL", fmt.Errorf("connection reset"))},
		body:   "page",
	}

	body, err := fastRetry(next).Fetch("https://example.com")
	assert.NoError(t, err)
	assert.Equal(t, "page", body)
	assert.Equal(t, 2, next.calls)
}

func TestRetryFetcherDoesNotRetryOtherStatusCodes(t *testing.T) {
	// A 404 is terminal and must not burn the retry budget
	terminal := fmt.Errorf("fetch https://example.com unexpected status code: 404")
	next := &countingFetcher{
		errors: []error{terminal, terminal, terminal, terminal, terminal},
	}

	_, err := fastRetry(next).Fetch("https://example.com")
	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, next.calls)
}

func TestRetryFetcherExhaustsBudget(t *testing.T) {
	rateLimited := errs.NewRateLimit("u", "")
	next := &countingFetcher{
		errors: []error{rateLimited, rateLimited, rateLimited, rateLimited, rateLimited},
	}

	_, err := fastRetry(next).Fetch("https://example.com")
	assert.Error(t, err)
	assert.Equal(t, 5, next.calls)

	var crawlErr *errs.CrawlError
	assert.ErrorAs(t, err, &crawlErr)
	assert.Equal(t, errs.ErrorTypeRetryExhausted, crawlErr.Type)
	assert.False(t, crawlErr.IsRetryable())
	assert.ErrorIs(t, err, rateLimited)
}

func TestCacheFetcherServesFromCache(t *testing.T) {
	cacheSvc := NewMockCacheService()
	cacheSvc.Set("https://example.com?page=1", []byte("cached page"), time.Hour)

	next := &countingFetcher{body: "fresh page"}
	f := NewCacheFetcher(next, cacheSvc)

	body, err := f.Fetch("https://example.com?page=1")
	assert.NoError(t, err)
	assert.Equal(t, "cached page", body)
	assert.Equal(t, 0, next.calls, "cache hit must not reach the network")
}

func TestCacheFetcherKeyedByExactURL(t *testing.T) {
	// A different datestamp parameter is a different cache key
	cacheSvc := NewMockCacheService()
	cacheSvc.Set("https://example.com?page=1&datestamp=2024-01-01", []byte("stale page"), time.Hour)

	next := &countingFetcher{body: "fresh page"}
	f := NewCacheFetcher(next, cacheSvc)

	body, err := f.Fetch("https://example.com?page=1&datestamp=2024-01-02")
	assert.NoError(t, err)
	assert.Equal(t, "fresh page", body)
	assert.Equal(t, 1, next.calls)
}

func TestCacheFetcherStoresMisses(t *testing.T) {
	cacheSvc := NewMockCacheService()
	next := &countingFetcher{body: "fresh page"}
	f := NewCacheFetcher(next, cacheSvc)

	_, err := f.Fetch("https://example.com?page=2")
	assert.NoError(t, err)

	body, err := f.Fetch("https://example.com?page=2")
	assert.NoError(t, err)
	assert.Equal(t, "fresh page", body)
	assert.Equal(t, 1, next.calls, "second fetch must come from the cache")
}

func TestNewDefaultFetcherComposition(t *testing.T) {
	// retry wraps cache wraps HTTP
	f := NewDefaultFetcher(NewMockCacheService())
	retry, ok := f.(*RetryFetcher)
	assert.True(t, ok)
	assert.Equal(t, 5, retry.MaxAttempts)
	assert.Equal(t, 4*time.Second, retry.BaseDelay)
	assert.Equal(t, 60*time.Second, retry.MaxDelay)

	cacheLayer, ok := retry.Next.(*CacheFetcher)
	assert.True(t, ok)
	assert.IsType(t, HTTPFetcher{}, cacheLayer.Next)

	// Without a cache service the caching layer is skipped
	bare, ok := NewDefaultFetcher(nil).(*RetryFetcher)
	assert.True(t, ok)
	assert.IsType(t, HTTPFetcher{}, bare.Next)
}
