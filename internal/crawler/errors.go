package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchKindNetwork FetchErrorKind = "network"
	FetchKindTimeout FetchErrorKind = "timeout"
	FetchKindStatus  FetchErrorKind = "status"
)

// FetchError reports a transport failure, timeout, or non-2xx response for URL.
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchKindStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps a transport error, deciding between timeout and network.
func NewFetchError(rawURL string, err error) *FetchError {
	kind := FetchKindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = FetchKindTimeout
	}
	return &FetchError{URL: rawURL, Kind: kind, Err: err}
}

// NewStatusError reports a non-2xx response.
func NewStatusError(rawURL string, status int) *FetchError {
	return &FetchError{
		URL:        rawURL,
		Kind:       FetchKindStatus,
		StatusCode: status,
		Err:        fmt.Errorf("status %d", status),
	}
}

// ExtractionError reports an expected element that was absent or unparseable.
type ExtractionError struct {
	URL      string
	Selector string
	Reason   string
	Err      error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %q from %s: %s", e.Selector, e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is, or wraps, a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsExtractionError reports whether err is, or wraps, an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
