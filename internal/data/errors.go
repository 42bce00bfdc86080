package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrInvalidUserID is returned when an identity id is not a UUID.
	ErrInvalidUserID = errors.New("user id must be a UUID")
	// ErrCallerRequired is returned when a write has no acting identity to attribute it to.
	ErrCallerRequired = errors.New("acting user id is required")
)
