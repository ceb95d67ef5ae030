package lambdafn

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParallelism is returned by New when the configured degree of
	// parallelism is not positive.
	ErrInvalidParallelism = errors.New("max degree of parallelism must be positive")

	// ErrNoHandler is returned when no handler is registered for a message type.
	ErrNoHandler = errors.New("no handler registered")

	// ErrNilRegistry is returned by New when no registry was supplied.
	ErrNilRegistry = errors.New("registry is required")

	// ErrBatchResponseUnsupported is returned when batch response mode is
	// requested for a source that cannot report partial failures.
	ErrBatchResponseUnsupported = errors.New("batch response is not supported by this source")
)

// RecordError is a per-record failure. In fire-and-forget mode it is the
// error returned for the whole batch.
type RecordError struct {
	ID  string
	Err error
}

func (e *RecordError) Error() string { return fmt.Sprintf("record %s: %v", e.ID, e.Err) }
func (e *RecordError) Unwrap() error { return e.Err }

// DeserializationError wraps serializer and validation failures. It is
// handled exactly like a handler error.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string { return "deserialize message: " + e.Err.Error() }
func (e *DeserializationError) Unwrap() error { return e.Err }

// ResolutionError means the handler for a message type could not be
// resolved. It is fatal for the whole invocation regardless of mode.
type ResolutionError struct {
	Type string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve handler for %s: %v", e.Type, e.Err)
}
func (e *ResolutionError) Unwrap() error { return e.Err }

// PanicError is produced when a handler panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("handler panicked: %v", e.Value) }

// IsFatal reports whether err aborts the whole invocation rather than a
// single record.
func IsFatal(err error) bool {
	var rerr *ResolutionError
	return errors.As(err, &rerr)
}
