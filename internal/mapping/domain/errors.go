package mapping

import "errors"

// ErrOverrideNotFound is returned when no override exists for a key.
var ErrOverrideNotFound = errors.New("mapping: pending override not found")

// ErrNilRecord is returned when a nil record reaches a contract method.
var ErrNilRecord = errors.New("mapping: nil record")
