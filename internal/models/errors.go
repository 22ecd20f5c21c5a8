package models

import (
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrPublishFailed = errors.New("processing request publish failed")
	ErrStaleRequest  = errors.New("processing request is stale")
)
