package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced record or affiliate is absent.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicatePending is returned when a non-terminal pending record
	// already exists for the same payment id and variant.
	ErrDuplicatePending = errors.New("pending record already exists for payment")

	// ErrRetryExhausted is surfaced by callers when a record has reached its
	// maximum attempt count.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// PersistenceError wraps a durable-store read or write failure, surfacing the
// storage engine's message.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err with the failing operation name.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// InvalidServiceTypeError is returned when a service type has no split table entry.
type InvalidServiceTypeError struct {
	ServiceType ServiceType
}

func (e *InvalidServiceTypeError) Error() string {
	return fmt.Sprintf("no split table entry for service type %q", e.ServiceType)
}

// ExternalTransferError reports a failed gateway transfer inside a split
// batch. Earlier transfers are not rolled back, so the error names which
// recipients succeeded and which failed for manual reconciliation.
type ExternalTransferError struct {
	CobrancaID string
	Failed     RecipientType
	Succeeded  []RecipientType
	Err        error
}

func (e *ExternalTransferError) Error() string {
	return fmt.Sprintf("transfer for %s failed on recipient %s (succeeded: %v): %v",
		e.CobrancaID, e.Failed, e.Succeeded, e.Err)
}

func (e *ExternalTransferError) Unwrap() error { return e.Err }
