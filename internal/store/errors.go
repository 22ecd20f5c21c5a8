package store

import "errors"

var (
	ErrNotFound = errors.New("store: resource not found")
	ErrConflict = errors.New("store: conflicting resource state")
	// ErrTerminalState is returned when a guarded write finds the job already past the state it expects.
	ErrTerminalState = errors.New("store: job already in terminal state")
)
