package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Sentinel errors
var (
	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")

	// ErrDestinationConflict indicates two tasks of one run resolved to the same file
	ErrDestinationConflict = errors.New("destination already claimed by another asset")

	// ErrTemplateArity indicates a destination template references a missing release part
	ErrTemplateArity = errors.New("template references a missing release part")

	// ErrLedgerCorrupted indicates the ledger file contains invalid JSON
	ErrLedgerCorrupted = errors.New("ledger file is corrupted")

	// ErrRateLimited indicates rate limiting was encountered
	ErrRateLimited = errors.New("rate limited")
)

// Error kinds reported in run summaries
const (
	KindConfig            = "config"
	KindHTTP              = "http"
	KindUnsupportedFormat = "unsupported_format"
	KindConflict          = "conflict"
	KindIO                = "io"
	KindCanceled          = "canceled"
	KindUnknown           = "unknown"
)

// ConfigError reports a problem with the rule file or settings
type ConfigError struct {
	Path    string
	Line    int
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	where := e.Path
	if e.Line > 0 {
		where = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if where == "" {
		return "config error: " + msg
	}
	return fmt.Sprintf("config error at %s: %s", where, msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// HTTPError represents a non-2xx response from the hosting provider
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(url string, statusCode int, status string) *HTTPError {
	return &HTTPError{
		URL:        url,
		StatusCode: statusCode,
		Status:     status,
	}
}

// UnsupportedFormatError is returned for files that are not a known archive kind
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported archive format: %s", e.Path)
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case 429, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrRateLimited)
}

// KindOf classifies an error for reporting
func KindOf(err error) string {
	if err == nil {
		return ""
	}

	var cfgErr *ConfigError
	var httpErr *HTTPError
	var fmtErr *UnsupportedFormatError
	var pathErr *fs.PathError
	var linkErr *os.LinkError

	switch {
	case errors.As(err, &cfgErr), errors.Is(err, ErrTemplateArity):
		return KindConfig
	case errors.As(err, &httpErr):
		return KindHTTP
	case errors.As(err, &fmtErr):
		return KindUnsupportedFormat
	case errors.Is(err, ErrDestinationConflict):
		return KindConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &pathErr), errors.As(err, &linkErr), errors.Is(err, ErrLedgerCorrupted):
		return KindIO
	default:
		return KindUnknown
	}
}
