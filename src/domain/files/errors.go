package files

import "errors"

// Error classes. Concrete sentinels in the service packages wrap one of
// these so that handlers can map them to a status code with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUpstream marks failures of an external service (blob store).
	ErrUpstream = errors.New("upstream failure")
)
