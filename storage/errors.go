package storage

import (
	"errors"
	"fmt"
)

// NotFoundError reports an unknown user, step, project or progress row.
type NotFoundError struct {
	Kind string // "user", "step", "project", "progress", "badge"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// StorageError wraps a persistence failure: store unavailable, request
// timeout, or a transaction conflict that did not resolve. The caller must
// not assume the operation took effect.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// WrapError tags a persistence failure with the operation that hit it.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
