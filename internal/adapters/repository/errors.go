package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrClosed    = errors.New("store closed")
	ErrWrongType = errors.New("operation against a key holding the wrong kind of value")
	ErrOverflow  = errors.New("increment would overflow")
)
