package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration represents unknown shops, malformed templates and unsupported backends
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeFetch represents network failures, timeouts and non-success statuses
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeRateLimit represents a shop that is temporarily blocked
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeExtraction represents a page whose structure could not be read
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeItemParse represents a single product item that could not be read
	ErrorTypeItemParse ErrorType = "item_parse"
	// ErrorTypeConflict represents a racing create for the same canonical URL
	ErrorTypeConflict ErrorType = "reconciliation_conflict"
	// ErrorTypeStorage represents catalog storage errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
)

// CrawlerError represents a pipeline error scoped to a shop (if any)
type CrawlerError struct {
	Type    ErrorType
	Shop    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Shop, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Shop, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsType reports whether err wraps a CrawlerError of the given type.
func IsType(err error, errType ErrorType) bool {
	var ce *CrawlerError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.Type == errType
}

// New creates a new CrawlerError
func New(errType ErrorType, shop, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:    errType,
		Shop:    shop,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewConfiguration creates a new configuration error for the named shop
func NewConfiguration(shop, message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, shop, message, err)
}

// NewFetch creates a new fetch error
func NewFetch(shop, message string, err error) *CrawlerError {
	return New(ErrorTypeFetch, shop, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(shop string, duration time.Duration) *CrawlerError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, shop, message, nil)
}

// NewExtraction creates a new page-level extraction error
func NewExtraction(shop, message string, err error) *CrawlerError {
	return New(ErrorTypeExtraction, shop, message, err)
}

// NewItemParse creates a new item-level parse error
func NewItemParse(shop, message string, err error) *CrawlerError {
	return New(ErrorTypeItemParse, shop, message, err)
}

// NewConflict creates a new reconciliation conflict error
func NewConflict(url string, err error) *CrawlerError {
	return New(ErrorTypeConflict, "", "concurrent create for "+url, err)
}

// NewStorage creates a new storage error
func NewStorage(message string, err error) *CrawlerError {
	return New(ErrorTypeStorage, "", message, err)
}

// NewCache creates a new cache error
func NewCache(shop, message string, err error) *CrawlerError {
	return New(ErrorTypeCache, shop, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, "", message, err)
}
