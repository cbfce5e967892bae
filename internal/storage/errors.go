package storage

import (
	"errors"
	"fmt"
)

// Failures in this package fall into three groups: the database cannot
// be reached, a query failed, or a findings batch could not be
// inserted. The sentinels keep the group checkable with errors.Is
// after wrapping.
var (
	ErrConnectionFailed  = errors.New("storage: connection failed")
	ErrQueryFailed       = errors.New("storage: query failed")
	ErrBatchInsertFailed = errors.New("storage: batch insert failed")

	// ErrWriterClosed is returned by writes after Close.
	ErrWriterClosed = errors.New("storage: batch writer closed")
)

// StorageError carries the operation and table a failure happened in.
type StorageError struct {
	Op      string
	Table   string
	Err     error
	Retries int
}

func (e *StorageError) Error() string {
	msg := "storage." + e.Op
	if e.Table != "" {
		msg += "(" + e.Table + ")"
	}
	if e.Retries > 0 {
		return fmt.Sprintf("%s: %v (after %d retries)", msg, e.Err, e.Retries)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapConnectionError marks err as a connectivity failure.
func WrapConnectionError(op string, err error) error {
	return &StorageError{
		Op:  op,
		Err: fmt.Errorf("%w: %v", ErrConnectionFailed, err),
	}
}

// WrapQueryError marks err as a query failure against a table.
func WrapQueryError(op, table string, err error) error {
	return &StorageError{
		Op:    op,
		Table: table,
		Err:   fmt.Errorf("%w: %v", ErrQueryFailed, err),
	}
}

// WrapBatchError marks err as an exhausted batch insert, recording how
// many retries were spent.
func WrapBatchError(table string, err error, retries int) error {
	return &StorageError{
		Op:      "InsertBatch",
		Table:   table,
		Err:     fmt.Errorf("%w: %v", ErrBatchInsertFailed, err),
		Retries: retries,
	}
}
