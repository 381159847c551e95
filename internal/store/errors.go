package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrStageConflict is returned when a compare-and-set stage update finds
// the record missing, frozen, or no longer at the expected stage.
var ErrStageConflict = errors.New("stage conflict")
