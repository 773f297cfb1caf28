package txfile

import "time"

// Metrics receives handler events. Implementations must be safe for
// concurrent use since many handlers may share one.
//
// See package txmetrics for a Prometheus implementation.
type Metrics interface {
	// LockAcquired is called after a lock attempt finishes, with the total
	// time spent waiting and the final error (nil on success).
	LockAcquired(lt LockType, wait time.Duration, err error)

	// Retried is called for every failed attempt of a retried operation.
	Retried(op string)

	// Committed is called after a replace of the target, by an atomic commit
	// or by ReplaceByMove and ReplaceByCopy in either mode. copied is true
	// when the rename fell back to copying.
	Committed(d time.Duration, copied bool, err error)

	// Reverted is called when a pending edit file is discarded.
	Reverted()

	// RemovalDeferred is called when a transient file could not be removed.
	RemovalDeferred()
}

type nopMetrics struct{}

func (nopMetrics) LockAcquired(LockType, time.Duration, error) {}
func (nopMetrics) Retried(string)                              {}
func (nopMetrics) Committed(time.Duration, bool, error)        {}
func (nopMetrics) Reverted()                                   {}
func (nopMetrics) RemovalDeferred()                            {}
