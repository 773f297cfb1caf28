package retry

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsContention reports whether err looks like transient contention with
// another lock holder: the lock is held elsewhere, the file is busy, or
// access was denied because of a conflicting lock.
//
// fcntl(2) reports lock conflicts as either EAGAIN or EACCES depending on
// the platform, which is why EACCES is in the set.
func IsContention(err error) bool {
	if err == nil {
		return false
	}

	for _, errno := range contentionErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	return false
}

var contentionErrnos = []unix.Errno{
	unix.EAGAIN,
	unix.EWOULDBLOCK,
	unix.EBUSY,
	unix.ETXTBSY,
	unix.EACCES,
	unix.EPERM,
	unix.EINTR,
}
