package store

import (
	"context"
	"errors"
)

var (
	// ErrTransport marks failures of the transport itself: timeouts, dropped
	// connections, injected faults.
	ErrTransport = errors.New("transport failure")
	// ErrUnknown is everything else.
	ErrUnknown = errors.New("unknown failure")

	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrBadCursor    = errors.New("malformed cursor")
	ErrEmptyKeyword = errors.New("keyword is required")
)

// Classify maps err onto ErrTransport or ErrUnknown. Screens never branch on
// the result; it is used for logs and HTTP status codes.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrTransport
	default:
		return ErrUnknown
	}
}
