package feed

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	// KindNetwork is a transport-level failure reaching the feed.
	KindNetwork ErrorKind = "NETWORK_ERROR"
	// KindProtocol is a non-success response status.
	KindProtocol ErrorKind = "PROTOCOL_ERROR"
	// KindDecode is a body that is not a JSON array of records.
	KindDecode ErrorKind = "DECODE_ERROR"
)

// FetchError is returned by Client.FetchBatch for every failed poll.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int // only set for KindProtocol
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is, or wraps, a FetchError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Kind == kind
}

func networkError(err error) *FetchError {
	return &FetchError{Kind: KindNetwork, Message: "request failed", Cause: err}
}

func protocolError(status int, body string) *FetchError {
	return &FetchError{
		Kind:       KindProtocol,
		StatusCode: status,
		Message:    fmt.Sprintf("feed returned status %d: %s", status, body),
	}
}

func decodeError(err error) *FetchError {
	return &FetchError{Kind: KindDecode, Message: "response is not an event batch", Cause: err}
}
