package hookrelay

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("hookrelay: no store configured")
	ErrStoreClosed = errors.New("hookrelay: store closed")

	// Wiring errors.
	ErrNoSender = errors.New("hookrelay: no sender configured")

	// Not found errors.
	ErrItemNotFound = errors.New("hookrelay: item not found")

	// Lock errors.
	ErrLockNotHeld = errors.New("hookrelay: lock not held by this holder")

	// Configuration errors.
	ErrInvalidConfig = errors.New("hookrelay: invalid configuration")
)
