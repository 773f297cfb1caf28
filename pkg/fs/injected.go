package fs

import (
	"errors"
)

// InjectedError marks an error as intentionally injected by [Faulty].
//
// It wraps the underlying error so errors.Is/As continue to work, which lets
// injected errno values (for example syscall.EXDEV) drive the same code paths
// a real filesystem would.
type InjectedError struct {
	Op   string
	Path string
	Err  error
}

// Error returns "injected <op> <path>: <err>".
func (e *InjectedError) Error() string {
	return "injected " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by [Faulty].
// Returns false if err is nil.
func IsInjected(err error) bool {
	if err == nil {
		return false
	}

	var injected *InjectedError

	return errors.As(err, &injected)
}
