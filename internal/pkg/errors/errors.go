package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidImage marks bytes that could not be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLedgerConflict marks a conditional insert that lost to an existing record.
	ErrLedgerConflict = errors.New("ledger conflict")
	// ErrEmbedFailure marks a failed watermark embed or re-encode.
	ErrEmbedFailure = errors.New("embed failure")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
)

// TransientStoreError wraps ledger, blob, or queue I/O failures that are
// safe to retry. Callers must surface these, never swallow them.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// Transient tags err as a retryable store failure for operation op.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientStoreError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientStoreError.
func IsTransient(err error) bool {
	var t *TransientStoreError
	return errors.As(err, &t)
}
