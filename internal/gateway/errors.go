package gateway

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when a mutation matched no row
var ErrRecordNotFound = errors.New("record not found")

// DataUnavailableError wraps a store or transport failure
type DataUnavailableError struct {
	Op  string
	Err error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable during %s: %v", e.Op, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// MutationRejectedError is returned before any SQL is built for an invalid
// mutation request
type MutationRejectedError struct {
	Table    string
	RecordID int64
	Reason   string
}

func (e *MutationRejectedError) Error() string {
	return fmt.Sprintf("mutation of %s/%d rejected: %s", e.Table, e.RecordID, e.Reason)
}

// IsDataUnavailable reports whether err is or wraps a DataUnavailableError
func IsDataUnavailable(err error) bool {
	var target *DataUnavailableError
	return errors.As(err, &target)
}

// IsMutationRejected reports whether err is or wraps a MutationRejectedError
func IsMutationRejected(err error) bool {
	var target *MutationRejectedError
	return errors.As(err, &target)
}

func unavailable(op string, err error) error {
	return &DataUnavailableError{Op: op, Err: err}
}
