package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies crawl failures. Kinds decide retry behaviour and how a
// failure is surfaced to clients.
type ErrorKind string

// Error kind constants.
const (
	// KindInvalidURL marks URLs that are unparseable or fail validity/scope
	// checks. Local to the frontier; counted, never surfaced per-page.
	KindInvalidURL ErrorKind = "invalid_url"
	// KindHTTPError marks non-2xx responses. Fatal for the page, no retry.
	KindHTTPError ErrorKind = "http_error"
	// KindTimeout marks a fetch or store deadline overrun. Fetches retry once.
	KindTimeout ErrorKind = "timeout"
	// KindTransient marks store or network flakes. Retried with backoff.
	KindTransient ErrorKind = "transient"
	// KindParseError marks HTML parse failures. Page marked error, job continues.
	KindParseError ErrorKind = "parse_error"
	// KindCancelled marks cooperative worker exit after a user cancel.
	KindCancelled ErrorKind = "cancelled"
	// KindCapacity marks enqueue attempts rejected once maxPages is reached.
	KindCapacity ErrorKind = "capacity"
	// KindFatal marks invariant violations. The only kind allowed to unwind
	// beyond its component; fails the job.
	KindFatal ErrorKind = "fatal"
)

// CrawlError is the result variant carried across pipeline stages.
type CrawlError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewError creates a CrawlError of the given kind.
func NewError(kind ErrorKind, message string) *CrawlError {
	return &CrawlError{Kind: kind, Message: message}
}

// WrapError creates a CrawlError of the given kind around a cause.
func WrapError(kind ErrorKind, message string, err error) *CrawlError {
	return &CrawlError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the error kind; untagged errors classify as fatal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Kind
	}
	return KindFatal
}

// IsRetryable reports whether an error of this kind may be retried. Timeout
// retry budgets differ from transient ones; callers own the attempt counts.
func (k ErrorKind) IsRetryable() bool {
	return k == KindTransient || k == KindTimeout
}
