package sentinel

import "errors"

// Stores return these (optionally wrapped); services translate them into
// domain errors.
//
//   - ErrNotFound: no active row matches (soft-deleted rows count as absent)
//   - ErrAlreadyUsed: a unique column among live rows already holds the value
//
// Validation failures use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
)
