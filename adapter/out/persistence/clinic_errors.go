package persistence

import (
	"errors"

	"clinic_server/core/port/out"
)

// Common persistence errors. ErrNotFound aliases the port sentinel so the
// core can match it without importing this package.
var (
	ErrNotFound     = out.ErrNotFound
	ErrDuplicate    = errors.New("duplicate entry")
	ErrInvalidInput = errors.New("invalid input")
)
