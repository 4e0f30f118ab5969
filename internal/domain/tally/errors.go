package tally

import "errors"

// Sentinel kinds for the counting domain.
var (
	// ErrInvalidArgument marks caller input that cannot be applied (missing userId).
	ErrInvalidArgument = errors.New("userId required")
	// ErrStoreUnavailable wraps any score store failure on read or write.
	ErrStoreUnavailable = errors.New("score store unavailable")
	// ErrInFlight is returned when an idempotency key is reused while the
	// first request carrying it has not finished.
	ErrInFlight = errors.New("request with this idempotency key is in flight")
)
