package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors.
//
//   - ErrNotFound: no live record for the key
//   - ErrAlreadyUsed: a unique key (destination or name) is bound to a live record
//   - ErrConflict: a write lost a race with a concurrent writer
//   - ErrInvalidState: record exists but is in the wrong state for the operation
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
