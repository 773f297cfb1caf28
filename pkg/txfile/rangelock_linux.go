package txfile

import (
	"io"

	"golang.org/x/sys/unix"
)

// lockFd uses open file description locks. Unlike classic POSIX record
// locks they are owned by the descriptor, not the process, and are not
// dropped when an unrelated descriptor for the same file is closed.
func lockFd(fd int, lt LockType) error {
	typ := int16(unix.F_RDLCK)
	if lt == LockExclusive {
		typ = unix.F_WRLCK
	}

	return unix.FcntlFlock(uintptr(fd), unix.F_OFD_SETLK, &unix.Flock_t{
		Type:   typ,
		Whence: io.SeekStart,
		Start:  0,
		Len:    LockRangeLen,
	})
}

func unlockFd(fd int) error {
	return unix.FcntlFlock(uintptr(fd), unix.F_OFD_SETLK, &unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: io.SeekStart,
		Start:  0,
		Len:    LockRangeLen,
	})
}
