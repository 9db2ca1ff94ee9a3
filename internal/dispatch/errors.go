package dispatch

import "errors"

var (
	// ErrUnknownIntent means the intent is not a member of the closed set.
	ErrUnknownIntent = errors.New("unknown intent")

	// ErrUnsupportedIntent means the intent is valid but no handler is
	// registered for it.
	ErrUnsupportedIntent = errors.New("unsupported intent")
)
