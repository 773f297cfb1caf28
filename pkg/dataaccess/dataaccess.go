// Package dataaccess exposes whole-buffer and streaming access to a resource
// through one interface, whatever the resource supports.
//
// A [Backend] supplies the primitives (streams, and optionally seeking,
// locking and transactions). [Access] layers the shared algorithms on top:
// Load reads everything under a shared lock, Save and Append write
// everything under an exclusive lock. Capabilities are declared, never
// inferred: an operation the backend does not declare fails with
// [errors.ErrUnsupported], except lock calls on a backend without locking,
// which are no-ops.
//
//	da, err := dataaccess.NewFile("users.json", txfile.WithAtomicMode(true))
//	if err != nil {
//	    return err
//	}
//	defer da.Close()
//
//	if err := da.Save(data); err != nil {
//	    return err
//	}
package dataaccess

import (
	"errors"
	"fmt"
	"io"

	"github.com/calvinalkan/txfile/pkg/txfile"
)

// DataAccess is the contract consumers depend on.
type DataAccess interface {
	SyncMode() txfile.SyncMode
	SetSyncMode(m txfile.SyncMode) error

	AtomicModeSupported() bool
	AtomicMode() bool
	SetAtomicMode(on bool) error

	LockSupported() bool
	LockShared() error
	LockExclusive() error
	LockType() txfile.LockType
	Unlock() error

	SeekSupported() bool
	Position() (int64, error)
	Length() (int64, error)
	SetLength(n int64) error
	Truncate() error
	Seek(pos int64) error
	SeekStart() error
	SeekEnd() error

	Input() (io.ReadCloser, error)
	Output() (io.WriteCloser, error)

	BeginOverwrite() error
	BeginAppend() error

	Load() ([]byte, error)
	Save(data []byte) error
	Append(data []byte) error

	Commit() error
	Revert() error
	Close() error
	CommitAndClose() error
}

// Capabilities declares what a [Backend] supports. The matching optional
// interface is only consulted when its flag is set.
type Capabilities struct {
	Seek   bool // Backend implements [Seeker].
	Lock   bool // Backend implements [Locker].
	Atomic bool // Backend implements [Transactional].
}

// Backend supplies the primitives every resource has.
type Backend interface {
	Capabilities() Capabilities
	Input() (io.ReadCloser, error)
	Output() (io.WriteCloser, error)
	Close() error
}

// Seeker is implemented by backends with a cursor.
type Seeker interface {
	Position() (int64, error)
	Length() (int64, error)
	SetLength(n int64) error
	Seek(pos int64) error
}

// Locker is implemented by backends with shared/exclusive locking.
type Locker interface {
	LockShared() error
	LockExclusive() error
	LockType() txfile.LockType
	Unlock() error
}

// Transactional is implemented by backends with atomic mode.
type Transactional interface {
	AtomicMode() bool
	SetAtomicMode(on bool) error
	Commit() error
	Revert() error
}

// Syncer is implemented by backends that honor a sync mode.
type Syncer interface {
	SetSyncMode(m txfile.SyncMode) error
}

// WriteModer is implemented by backends that start write transactions
// themselves instead of through SetLength and Seek.
type WriteModer interface {
	BeginOverwrite() error
	BeginAppend() error
}

func unsupported(op string) error {
	return fmt.Errorf("dataaccess: %s: %w", op, errors.ErrUnsupported)
}

// Access implements [DataAccess] over a [Backend].
//
// Access is not safe for concurrent use.
type Access struct {
	b        Backend
	caps     Capabilities
	syncMode txfile.SyncMode
}

// New returns an Access over b.
func New(b Backend) *Access {
	return &Access{b: b, caps: b.Capabilities(), syncMode: txfile.SyncDataAndMeta}
}

// Backend returns the underlying backend.
func (a *Access) Backend() Backend { return a.b }

// SyncMode returns the sync mode. The default is [txfile.SyncDataAndMeta].
func (a *Access) SyncMode() txfile.SyncMode { return a.syncMode }

// SetSyncMode sets the sync mode and passes it to the backend if it honors one.
func (a *Access) SetSyncMode(m txfile.SyncMode) error {
	if s, ok := a.b.(Syncer); ok {
		if err := s.SetSyncMode(m); err != nil {
			return err
		}
	}

	a.syncMode = m

	return nil
}

func (a *Access) AtomicModeSupported() bool { return a.caps.Atomic }

func (a *Access) AtomicMode() bool {
	if !a.caps.Atomic {
		return false
	}

	return a.b.(Transactional).AtomicMode()
}

// SetAtomicMode fails with [errors.ErrUnsupported] when enabling atomic mode
// on a backend without it. Disabling it is always allowed.
func (a *Access) SetAtomicMode(on bool) error {
	if !a.caps.Atomic {
		if on {
			return unsupported("atomic mode")
		}

		return nil
	}

	return a.b.(Transactional).SetAtomicMode(on)
}

func (a *Access) LockSupported() bool { return a.caps.Lock }

// LockShared takes a shared lock. It is a no-op without lock support.
func (a *Access) LockShared() error {
	if !a.caps.Lock {
		return nil
	}

	return a.b.(Locker).LockShared()
}

// LockExclusive takes an exclusive lock. It is a no-op without lock support.
func (a *Access) LockExclusive() error {
	if !a.caps.Lock {
		return nil
	}

	return a.b.(Locker).LockExclusive()
}

func (a *Access) LockType() txfile.LockType {
	if !a.caps.Lock {
		return txfile.LockNone
	}

	return a.b.(Locker).LockType()
}

// Unlock releases the lock. It is a no-op without lock support.
func (a *Access) Unlock() error {
	if !a.caps.Lock {
		return nil
	}

	return a.b.(Locker).Unlock()
}

func (a *Access) SeekSupported() bool { return a.caps.Seek }

func (a *Access) seeker(op string) (Seeker, error) {
	if !a.caps.Seek {
		return nil, unsupported(op)
	}

	return a.b.(Seeker), nil
}

func (a *Access) Position() (int64, error) {
	s, err := a.seeker("position")
	if err != nil {
		return 0, err
	}

	return s.Position()
}

func (a *Access) Length() (int64, error) {
	s, err := a.seeker("length")
	if err != nil {
		return 0, err
	}

	return s.Length()
}

func (a *Access) SetLength(n int64) error {
	s, err := a.seeker("set length")
	if err != nil {
		return err
	}

	return s.SetLength(n)
}

// Truncate sets the length to zero.
func (a *Access) Truncate() error {
	return a.SetLength(0)
}

func (a *Access) Seek(pos int64) error {
	s, err := a.seeker("seek")
	if err != nil {
		return err
	}

	return s.Seek(pos)
}

func (a *Access) SeekStart() error {
	return a.Seek(0)
}

func (a *Access) SeekEnd() error {
	n, err := a.Length()
	if err != nil {
		return err
	}

	return a.Seek(n)
}

func (a *Access) Input() (io.ReadCloser, error) { return a.b.Input() }

func (a *Access) Output() (io.WriteCloser, error) { return a.b.Output() }

// BeginOverwrite starts writing from an empty resource: truncate and seek
// to the start unless the backend begins transactions itself.
func (a *Access) BeginOverwrite() error {
	if wm, ok := a.b.(WriteModer); ok {
		return wm.BeginOverwrite()
	}

	if err := a.SetLength(0); err != nil {
		return err
	}

	return a.SeekStart()
}

// BeginAppend positions at the end unless the backend begins transactions
// itself.
func (a *Access) BeginAppend() error {
	if wm, ok := a.b.(WriteModer); ok {
		return wm.BeginAppend()
	}

	return a.SeekEnd()
}

// Load reads the whole resource from the start.
//
// If locking is supported and no lock is held, a shared lock is taken for
// the read and released afterwards, also when reading fails.
func (a *Access) Load() (data []byte, err error) {
	if a.caps.Lock && a.LockType() == txfile.LockNone {
		if err := a.LockShared(); err != nil {
			return nil, err
		}

		defer func() { err = errors.Join(err, a.Unlock()) }()
	}

	if a.caps.Seek {
		if err := a.SeekStart(); err != nil {
			return nil, err
		}
	}

	r, err := a.Input()
	if err != nil {
		return nil, err
	}

	defer func() { err = errors.Join(err, r.Close()) }()

	return io.ReadAll(r)
}

// Save replaces the content with data.
//
// An exclusive lock is taken if none is held; a held shared lock fails with
// [txfile.ErrNotExclusive] rather than being upgraded. If Save took the lock
// itself it also commits before releasing it. Otherwise committing is left
// to the caller.
//
// On a seekable backend trailing bytes from longer earlier content are
// truncated. On a non-seekable backend data is streamed to a fresh output.
//
// In atomic mode a failed Save leaves the previous content intact. Without
// atomic mode a failed Save may leave the resource truncated or partially
// written.
func (a *Access) Save(data []byte) error {
	return a.write(data, txfile.WriteOverwrite)
}

// Append adds data to the end of the content. Locking and commit follow
// [Access.Save]. It fails with [errors.ErrUnsupported] on a backend that
// can neither seek nor begin an append itself.
func (a *Access) Append(data []byte) error {
	return a.write(data, txfile.WriteAppend)
}

func (a *Access) write(data []byte, mode txfile.WriteMode) (err error) {
	_, positions := a.b.(WriteModer)
	positions = positions || a.caps.Seek

	if mode == txfile.WriteAppend && !positions {
		return unsupported("append")
	}

	ownsLock := false

	if a.caps.Lock {
		switch a.LockType() {
		case txfile.LockShared:
			return fmt.Errorf("dataaccess: shared lock already held: %w", txfile.ErrNotExclusive)
		case txfile.LockNone:
			if err := a.LockExclusive(); err != nil {
				return err
			}

			ownsLock = true

			defer func() { err = errors.Join(err, a.Unlock()) }()
		}
	}

	if positions {
		if mode == txfile.WriteAppend {
			err = a.BeginAppend()
		} else {
			err = a.BeginOverwrite()
		}

		if err != nil {
			return err
		}
	}

	w, err := a.Output()
	if err != nil {
		return err
	}

	_, writeErr := w.Write(data)
	if err := errors.Join(writeErr, w.Close()); err != nil {
		return err
	}

	if a.caps.Seek {
		if err := a.truncateToPosition(); err != nil {
			return err
		}
	}

	if ownsLock {
		return a.Commit()
	}

	return nil
}

// truncateToPosition drops bytes past the cursor.
//
// Length is measured and truncated in two steps. A concurrent writer that
// ignores the lock could change the length in between.
func (a *Access) truncateToPosition() error {
	pos, err := a.Position()
	if err != nil {
		return err
	}

	n, err := a.Length()
	if err != nil {
		return err
	}

	if pos < n {
		return a.SetLength(pos)
	}

	return nil
}

// Commit commits the backend's transaction. It is a no-op on backends
// without transactions.
func (a *Access) Commit() error {
	if tx, ok := a.b.(Transactional); ok && a.caps.Atomic {
		return tx.Commit()
	}

	return nil
}

// Revert discards the backend's pending transaction. It is a no-op on
// backends without transactions.
func (a *Access) Revert() error {
	if tx, ok := a.b.(Transactional); ok && a.caps.Atomic {
		return tx.Revert()
	}

	return nil
}

// Close closes the backend without committing.
func (a *Access) Close() error {
	return a.b.Close()
}

// CommitAndClose commits, then closes even if the commit failed.
func (a *Access) CommitAndClose() error {
	commitErr := a.Commit()
	closeErr := a.Close()

	return errors.Join(commitErr, closeErr)
}

var _ DataAccess = (*Access)(nil)
