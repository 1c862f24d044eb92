package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Gate state errors
	ErrStoreUnavailable = errors.New("state store unavailable")
	ErrUpdateConflict   = errors.New("concurrent state update conflict")
)
