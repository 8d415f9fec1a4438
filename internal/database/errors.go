package database

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested catalog object does not exist.
var ErrNotFound = errors.New("not found")

// QueryInterruptedError is returned when a statement exceeded its effective
// time limit and was aborted by the engine. Callers may recover, e.g. by
// retrying with a larger limit or treating the query as too expensive.
type QueryInterruptedError struct {
	// Err is the original engine error.
	Err error
	// SQL is the interrupted statement.
	SQL string
	// Params are the statement parameters, kept for diagnostics.
	Params []any
}

func (e *QueryInterruptedError) Error() string {
	return fmt.Sprintf("query interrupted: %s", e.SQL)
}

func (e *QueryInterruptedError) Unwrap() error {
	return e.Err
}
