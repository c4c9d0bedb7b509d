package domain

import "errors"

// Error taxonomy surfaced by the stores and services. Handlers map these to
// HTTP statuses; everything else is treated as an internal error.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrJobNotFound       = errors.New("job not found")
	ErrProviderNotFound  = errors.New("provider not found")
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrForbidden         = errors.New("provider does not own this job")
)
