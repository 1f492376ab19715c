package interfaces

import "errors"

// Sentinel errors shared across service boundaries. Expected conditions are
// modelled as errors (or nil results) rather than panics so handlers can map
// them to stable HTTP responses without leaking provider detail.
var (
	// ErrNotFound is returned by storage lookups when no record exists.
	ErrNotFound = errors.New("not found")

	// ErrNotConfigured is returned when a tenant has no usable credential
	// record (absent, disconnected, or incomplete). Surfaced to API callers
	// as a typed "not configured" result, never a 5xx.
	ErrNotConfigured = errors.New("tenant not configured")

	// ErrNotSupported is returned for provider capabilities the concrete
	// provider does not implement. Distinct from operation failure.
	ErrNotSupported = errors.New("operation not supported by provider")

	// ErrUnauthorized is returned when webhook authentication fails under
	// both accepted schemes.
	ErrUnauthorized = errors.New("unauthorized")
)
