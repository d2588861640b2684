package recordstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup by key matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownTable is returned for tables outside the allow-list.
	ErrUnknownTable = errors.New("unknown table")
	// ErrInvalidQuery is returned for malformed columns, operators or limits.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate key value violates unique constraint")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown record store driver")
)

// QueryError explains why a query was refused before reaching the backend.
type QueryError struct {
	Reason string
	Err    error
}

func (e *QueryError) Error() string { return fmt.Sprintf("recordstore: %s", e.Reason) }

func (e *QueryError) Unwrap() error { return e.Err }

// BackendError is a failure reported by the backing service.
type BackendError struct {
	Status  int
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("recordstore: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("recordstore: %d: %s", e.Status, e.Message)
}

// Is maps the Postgres unique-violation code onto ErrDuplicate.
func (e *BackendError) Is(target error) bool {
	return target == ErrDuplicate && (e.Code == "23505" || e.Status == 409)
}
