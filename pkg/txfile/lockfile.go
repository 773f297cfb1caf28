package txfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/txfile/pkg/fs"
)

const lockFilePerm = 0o600

// errLockFileReplaced means the lock file at the path changed between stat
// and flock. It also matches [ErrWouldBlock] so callers retry.
var errLockFileReplaced = fmt.Errorf("%w: lock file replaced while acquiring (%w)", ErrWouldBlock, unix.EAGAIN)

// coordLock is the flock held on the hidden lock file in atomic mode.
//
// flock locks an inode, not a path. A holder that removes the lock file
// while another process waits on the old inode would let both believe they
// hold the lock. tryCoordLock therefore checks the path still names the
// same file after locking, and release only removes the file while holding
// it exclusively.
type coordLock struct {
	path string
	fl   *flock.Flock
	lt   LockType
}

// tryCoordLock takes lt on the lock file at path without blocking, creating
// the file if needed.
func tryCoordLock(fsys fs.FS, path string, lt LockType) (*coordLock, error) {
	before, err := statOrCreate(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	fl := flock.New(path)

	var ok bool
	if lt == LockExclusive {
		ok, err = fl.TryLock()
	} else {
		ok, err = fl.TryRLock()
	}

	if err != nil {
		if isWouldBlock(err) {
			return nil, fmt.Errorf("%w: %w", ErrWouldBlock, err)
		}

		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s (%w)", ErrWouldBlock, path, unix.EWOULDBLOCK)
	}

	after, err := fsys.Stat(path)
	if err != nil || !os.SameFile(before, after) {
		_ = fl.Unlock()

		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("verifying lock file: %w", err)
		}

		return nil, errLockFileReplaced
	}

	return &coordLock{path: path, fl: fl, lt: lt}, nil
}

func statOrCreate(fsys fs.FS, path string) (os.FileInfo, error) {
	info, err := fsys.Stat(path)
	if err == nil {
		return info, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	f, err := fsys.OpenFile(path, os.O_RDONLY|os.O_CREATE, lockFilePerm)
	if err != nil {
		return nil, err
	}

	_ = f.Close()

	return fsys.Stat(path)
}

// Type returns the held lock type, or [LockNone] after release.
func (c *coordLock) Type() LockType {
	if c == nil || c.fl == nil || !c.fl.Locked() && !c.fl.RLocked() {
		return LockNone
	}

	return c.lt
}

// release unlocks the lock file and removes it when no one else can be
// holding it. It reports whether the file was removed.
//
// A shared holder tries a non-blocking upgrade first; if other holders
// remain it leaves the file to them. Two shared holders releasing at once
// both fail that upgrade, so after unlocking a shared holder tries once
// more on a fresh descriptor.
func (c *coordLock) release(fsys fs.FS) (removed bool, removeErr, unlockErr error) {
	if c == nil || c.fl == nil {
		return false, nil, nil
	}

	exclusive := c.lt == LockExclusive
	if !exclusive {
		ok, err := c.fl.TryLock()
		exclusive = err == nil && ok
	}

	if exclusive {
		err := fsys.Remove(c.path)
		switch {
		case err == nil:
			removed = true
		case !errors.Is(err, os.ErrNotExist):
			removeErr = err
		}
	}

	if err := c.fl.Unlock(); err != nil {
		unlockErr = fmt.Errorf("unlocking %s: %w", c.path, err)
	}

	c.fl = nil

	if !exclusive && unlockErr == nil {
		removed, removeErr = removeIfUnlocked(fsys, c.path)
	}

	return removed, removeErr, unlockErr
}

// removeIfUnlocked removes the lock file at path if an exclusive lock on it
// can be taken without blocking.
func removeIfUnlocked(fsys fs.FS, path string) (bool, error) {
	before, err := fsys.Stat(path)
	if err != nil {
		return false, nil
	}

	// Without O_CREATE a lock file removed meanwhile is not recreated.
	fl := flock.New(path, flock.SetFlag(os.O_RDONLY))

	ok, err := fl.TryLock()
	if err != nil || !ok {
		return false, nil
	}

	defer func() { _ = fl.Unlock() }()

	after, err := fsys.Stat(path)
	if err != nil || !os.SameFile(before, after) {
		return false, nil
	}

	err = fsys.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
