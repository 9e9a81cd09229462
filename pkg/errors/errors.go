package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents transient network-level fetch errors
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeRateLimit represents an HTTP 429 response
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeRetryExhausted represents a fetch that failed after the full retry budget
	ErrorTypeRetryExhausted ErrorType = "retry_exhausted"
	// ErrorTypeExtraction represents a listing fragment missing required fields
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypePersistence represents an I/O failure writing record artifacts
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// CrawlError represents a crawler-specific error
type CrawlError struct {
	Type    ErrorType
	Query   string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Query, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Query, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if a fetch hitting this error should be retried
func (e *CrawlError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeFetch:
		return true
	case ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// New creates a new CrawlError
func New(errType ErrorType, query, message string, err error) *CrawlError {
	return &CrawlError{
		Type:    errType,
		Query:   query,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new transient fetch error
func NewFetch(query, message string, err error) *CrawlError {
	return New(ErrorTypeFetch, query, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(query, retryAfter string) *CrawlError {
	message := "rate limited"
	if retryAfter != "" {
		message = fmt.Sprintf("rate limited; retry after %s", retryAfter)
	}
	return New(ErrorTypeRateLimit, query, message, nil)
}

// NewRetryExhausted wraps the last fetch error once the retry budget is spent
func NewRetryExhausted(query string, attempts int, err error) *CrawlError {
	return New(ErrorTypeRetryExhausted, query, fmt.Sprintf("failed after %d attempts", attempts), err)
}

// NewPersistence creates a new persistence error
func NewPersistence(query, message string, err error) *CrawlError {
	return New(ErrorTypePersistence, query, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// ExtractionError reports a listing fragment that failed required-field validation.
// The offending fragment HTML rides along so the failure can be re-run by hand.
type ExtractionError struct {
	Missing  []string
	Fragment string
}

// Error implements the error interface
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("[%s] missing required fields: %s", ErrorTypeExtraction, strings.Join(e.Missing, ", "))
}

// NewExtraction creates a new ExtractionError
func NewExtraction(missing []string, fragment string) *ExtractionError {
	return &ExtractionError{Missing: missing, Fragment: fragment}
}
