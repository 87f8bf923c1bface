// Package common defines shared sentinel errors used across the garden
// engine and its backing stores. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors (malformed input, e.g. non-positive watering frequency).
	ErrValidation = errors.New("validation error")

	// Transient I/O failures from a backing store. Retried at the caller's
	// discretion, never silently swallowed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// StreakPort failures are non-fatal: logged, never rolled back into the
	// plant mutation that triggered them.
	ErrStreakPort = errors.New("streak port failure")
)
