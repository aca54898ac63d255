// Package domain holds sentinel errors shared across Titan's domain types.
package domain

import "errors"

// Sentinel errors mapped to HTTP statuses at the adapter boundary.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrCapacity   = errors.New("at capacity")
)
