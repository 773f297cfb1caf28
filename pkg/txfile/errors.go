package txfile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidState is the parent of all misuse errors. It signals a
	// programming error and is never retried.
	ErrInvalidState = errors.New("invalid handler state")

	// ErrNotOpen is returned by operations that need an open handler.
	ErrNotOpen = fmt.Errorf("%w: not open", ErrInvalidState)

	// ErrNotExclusive is returned by write operations on a handler that is
	// not exclusively open. A shared lock is never upgraded implicitly.
	ErrNotExclusive = fmt.Errorf("%w: not exclusively open", ErrInvalidState)

	// ErrOpen is returned when a setting is changed while the handler is open.
	ErrOpen = fmt.Errorf("%w: cannot change while open", ErrInvalidState)

	// ErrWriteInProgress is returned when the handler cannot be reopened
	// because a write transaction has not been committed or reverted.
	ErrWriteInProgress = fmt.Errorf("%w: write transaction in progress", ErrInvalidState)

	// ErrWouldBlock is returned when a lock is held by someone else.
	ErrWouldBlock = errors.New("lock would block")

	// ErrLockTimeout is returned when a lock could not be acquired within
	// the retry policy bounds. It wraps the last [ErrWouldBlock].
	ErrLockTimeout = errors.New("lock timeout")
)

// Error carries the operation and target path of a failed [Handler] call.
//
// It formats as "<cause> (op=X path=Y)":
//
//	lock timeout: lock would block: resource temporarily unavailable (op=open path=/data/a.json)
//
// Use [errors.Is] with the package sentinels to classify the cause.
type Error struct {
	// Op is the handler operation, for example "open" or "commit".
	Op string

	// Path is the target file path.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (op=X path=Y)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var parts []string

	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	if len(parts) == 0 {
		return cause
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// withContext attaches op and path at API boundaries.
// An existing *Error keeps its fields.
func withContext(err error, op, path string) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	return &Error{Op: op, Path: path, Err: err}
}
