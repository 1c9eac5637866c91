package domain

import "errors"

// Error kinds shared across services and handlers. Services wrap these with
// fmt.Errorf("%w: ...") so callers can classify with errors.Is.
var (
	ErrInvalid              = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrConflict             = errors.New("conflict")
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrNotifierUnavailable  = errors.New("notifier unavailable")
	ErrDeadlineExceeded     = errors.New("deadline exceeded")
	ErrInternal             = errors.New("internal error")
)
