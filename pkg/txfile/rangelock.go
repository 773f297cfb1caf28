package txfile

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/txfile/pkg/fs"
)

// LockRangeLen is the length of the byte range locked at offset 0.
//
// The range may extend past the end of the file; POSIX allows locking bytes
// that do not exist yet.
const LockRangeLen = 64

// RangeLock is an advisory lock held on an open file.
//
// It is acquired with [TryLockRange] and stays valid until [RangeLock.Release]
// is called or the file is closed. The lock belongs to the open file
// description, so two separately opened descriptors conflict even within
// one process.
type RangeLock struct {
	mu    sync.Mutex
	file  fs.File
	lt    LockType
	valid bool
}

// TryLockRange takes a lock of type lt on f without blocking.
//
// Shared locks need f open for reading, exclusive locks need f open for
// writing. If the lock is held elsewhere the returned error matches
// [ErrWouldBlock].
func TryLockRange(f fs.File, lt LockType) (*RangeLock, error) {
	if lt != LockShared && lt != LockExclusive {
		return nil, fmt.Errorf("lock type %s: %w", lt, errors.ErrUnsupported)
	}

	err := retryEINTR(func() error { return lockFd(int(f.Fd()), lt) })
	if err != nil {
		if isWouldBlock(err) {
			return nil, fmt.Errorf("%w: %w", ErrWouldBlock, err)
		}

		return nil, fmt.Errorf("locking %s: %w", f.Name(), err)
	}

	return &RangeLock{file: f, lt: lt, valid: true}, nil
}

// Type returns the lock type, or [LockNone] once the lock is released.
func (l *RangeLock) Type() LockType {
	if l == nil {
		return LockNone
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.valid {
		return LockNone
	}

	return l.lt
}

// Valid reports whether the lock is still held.
func (l *RangeLock) Valid() bool {
	return l.Type() != LockNone
}

// Release unlocks the range. The file stays open.
//
// Release is idempotent. After the first call the lock is invalid even if
// unlocking failed, since closing the file releases it anyway.
func (l *RangeLock) Release() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.valid {
		return nil
	}

	l.valid = false

	err := retryEINTR(func() error { return unlockFd(int(l.file.Fd())) })
	if err != nil {
		return fmt.Errorf("unlocking %s: %w", l.file.Name(), err)
	}

	return nil
}

// retryEINTR retries fn while it fails with EINTR.
func retryEINTR(fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// isWouldBlock reports lock conflicts. fcntl(2) reports them as EAGAIN or
// EACCES depending on the platform.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EACCES)
}
