package store

import "errors"

// ErrNotFound is returned when a row does not exist or is hidden by
// tenant scoping.
var ErrNotFound = errors.New("not found")
