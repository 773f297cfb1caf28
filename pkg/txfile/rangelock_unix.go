//go:build unix && !linux

package txfile

import (
	"golang.org/x/sys/unix"
)

// lockFd falls back to flock(2), which locks the whole file. Classic fcntl
// record locks are per process and would not exclude a second descriptor
// opened by the same process.
func lockFd(fd int, lt LockType) error {
	how := unix.LOCK_SH
	if lt == LockExclusive {
		how = unix.LOCK_EX
	}

	return unix.Flock(fd, how|unix.LOCK_NB)
}

func unlockFd(fd int) error {
	return unix.Flock(fd, unix.LOCK_UN)
}
