package pigeon

import (
	"errors"
	"fmt"
)

// Registration errors are returned to the caller and only abort that one registration.
var (
	ErrDuplicateID  = errors.New("duplicate portal id")
	ErrDuplicateKey = errors.New("duplicate entry key")
	ErrAlreadyReady = errors.New("portal already ready")
)

// Dispatch errors are returned by Registry.Dispatch. The dispatcher drops the line and carries on.
var (
	ErrEmptyRequest  = errors.New("empty request line")
	ErrUnknownPortal = errors.New("unknown portal")
	ErrUnknownEntry  = errors.New("unknown entry")
	ErrNoHandler     = errors.New("entry has no handler")
)

// ErrInvalidStreamKey is returned when a stream order names a key the portal does not have.
var ErrInvalidStreamKey = errors.New("invalid stream key")

// ErrMalformedLine is returned by ParseLine for text that is not a wire output line.
var ErrMalformedLine = errors.New("malformed wire line")

// StreamKeyError reports the first unknown key of a rejected stream order.
type StreamKeyError struct {
	Portal string
	Key    string
}

func (e *StreamKeyError) Error() string {
	return fmt.Sprintf("portal '%s' has no entry '%s'", e.Portal, e.Key)
}

// Unwrap lets errors.Is match ErrInvalidStreamKey.
func (e *StreamKeyError) Unwrap() error {
	return ErrInvalidStreamKey
}

// IsDropped reports whether err is one of the dispatch errors that cause a line to be discarded.
func IsDropped(err error) bool {
	return errors.Is(err, ErrEmptyRequest) ||
		errors.Is(err, ErrUnknownPortal) ||
		errors.Is(err, ErrUnknownEntry) ||
		errors.Is(err, ErrNoHandler)
}

// dropReason maps a dispatch error to the label used by the drop counter.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyRequest):
		return "empty"
	case errors.Is(err, ErrUnknownPortal):
		return "unknown_portal"
	case errors.Is(err, ErrUnknownEntry):
		return "unknown_entry"
	case errors.Is(err, ErrNoHandler):
		return "no_handler"
	default:
		return "other"
	}
}
