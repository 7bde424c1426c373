package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the API reports an unknown video
	ErrNotFound = errors.New("video not found")
	// ErrIncompleteMetadata is returned when metadata lacks a field needed to build a link
	ErrIncompleteMetadata = errors.New("incomplete video metadata")
	// ErrMalformedLink is returned when the file URL carries no usable expires parameter
	ErrMalformedLink = errors.New("malformed file link")
	// ErrNoDownloadLink is returned when no resource variant exposes a download URL
	ErrNoDownloadLink = errors.New("no download link available")
	// ErrIncompleteRead marks a stream that ended before the announced body length
	ErrIncompleteRead = errors.New("incomplete read")
	// ErrRangeRejected marks a 416 response to a range request
	ErrRangeRejected = errors.New("range not satisfiable")
	// ErrRangeMismatch marks a 206 response that does not start at the requested offset
	ErrRangeMismatch = errors.New("partial content does not match requested range")
)

// AuthError is a login failure. It is fatal for the whole run.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError wraps a network-level failure (dial, reset, timeout)
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is an unexpected HTTP status from the API or file host
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// TransferError is the terminal error of a transfer that exhausted its attempt budget
// or hit a non-retryable condition.
type TransferError struct {
	VideoID  string
	Attempts int
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of video %s failed after %d attempt(s): %v", e.VideoID, e.Attempts, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a network, HTTP, interrupted-stream or re-authentication
// failure that is worth another attempt later.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transportErr *TransportError
	var httpErr *HTTPError
	var authErr *AuthError
	switch {
	case errors.As(err, &transportErr):
		return true
	case errors.As(err, &httpErr):
		return true
	case errors.As(err, &authErr):
		return true
	case errors.Is(err, ErrIncompleteRead):
		return true
	}
	return false
}

// HasRetryMarker reports whether the error message carries one of the platform's
// "retry later" markers. Empty markers never match.
func HasRetryMarker(err error, markers ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range markers {
		if marker != "" && strings.Contains(msg, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
