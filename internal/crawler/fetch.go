package crawler

import (
	"errors"
	"time"

	"as24-worker/helpers"
	"as24-worker/logger"
	"as24-worker/services/cache"
	errs "as24-worker/pkg/errors"
)

// Fetcher returns the page text for a URL
type Fetcher interface {
	Fetch(url string) (string, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface
type FetcherFunc func(url string) (string, error)

func (f FetcherFunc) Fetch(url string) (string, error) {
	return f(url)
}

// HTTPFetcher issues the actual GET request
type HTTPFetcher struct{}

func (HTTPFetcher) Fetch(url string) (string, error) {
	return helpers.FetchPage(url)
}

// Retry policy: 5 attempts total, exponential backoff with multiplier 1,
// floor 4s, cap 60s.
const (
	retryMaxAttempts = 5
	retryBaseDelay   = 4 * time.Second
	retryMaxDelay    = 60 * time.Second
)

// RetryFetcher retries retryable fetch errors (transport failures, HTTP 429)
// with exponential backoff. Any other error propagates immediately. Once the
// budget is spent the last error surfaces wrapped as retry-exhausted.
type RetryFetcher struct {
	Next        Fetcher
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewRetryFetcher wraps next with the stock retry policy
func NewRetryFetcher(next Fetcher) *RetryFetcher {
	return &RetryFetcher{
		Next:        next,
		MaxAttempts: retryMaxAttempts,
		BaseDelay:   retryBaseDelay,
		MaxDelay:    retryMaxDelay,
	}
}

func (r *RetryFetcher) Fetch(url string) (string, error) {
	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		body, err := r.Next.Fetch(url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var crawlErr *errs.CrawlError
		if !errors.As(err, &crawlErr) || !crawlErr.IsRetryable() {
			return "", err
		}

		if attempt < r.MaxAttempts {
			logger.Warn("fetch failed (attempt %d/%d): %v - retrying in %v",
				attempt, r.MaxAttempts, err, delay)
			time.Sleep(delay)
			delay *= 2
			if delay > r.MaxDelay {
				delay = r.MaxDelay
			}
		}
	}

	return "", errs.NewRetryExhausted(url, r.MaxAttempts, lastErr)
}

// Page cache entries survive long enough to cover one batch run; daily
// freshness is the caller's job via a datestamp URL parameter.
const pageCacheTTL = 24 * time.Hour

// CacheFetcher serves page text from the cache service, keyed by the exact
// URL string. Misses fall through to the wrapped fetcher and the result is
// stored for subsequent identical requests.
type CacheFetcher struct {
	Next     Fetcher
	CacheSvc cache.CacheService
}

// NewCacheFetcher wraps next with the URL-keyed content cache
func NewCacheFetcher(next Fetcher, cacheSvc cache.CacheService) *CacheFetcher {
	return &CacheFetcher{Next: next, CacheSvc: cacheSvc}
}

func (c *CacheFetcher) Fetch(url string) (string, error) {
	if c.CacheSvc != nil {
		if cached, err := c.CacheSvc.Get(url); err == nil {
			logger.Debug("page cache hit: %s", url)
			return string(cached), nil
		}
	}

	body, err := c.Next.Fetch(url)
	if err != nil {
		return "", err
	}

	if c.CacheSvc != nil {
		if err := c.CacheSvc.Set(url, []byte(body), pageCacheTTL); err != nil {
			logger.Debug("page cache store failed for %s: %v", url, err)
		}
	}

	return body, nil
}

// NewDefaultFetcher builds the standard chain: retrying transport wrapping a
// caching transport wrapping plain HTTP. With a nil cache service the cache
// layer is skipped.
func NewDefaultFetcher(cacheSvc cache.CacheService) Fetcher {
	var f Fetcher = HTTPFetcher{}
	if cacheSvc != nil {
		f = NewCacheFetcher(f, cacheSvc)
	}
	return NewRetryFetcher(f)
}
