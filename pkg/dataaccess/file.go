package dataaccess

import (
	"errors"
	"io"

	"github.com/calvinalkan/txfile/pkg/txfile"
)

// FileBackend is a [Backend] over a [txfile.Handler]. It supports seeking,
// locking and atomic mode.
//
// Locking maps to opening the handler: a shared lock opens it readable, an
// exclusive lock writable, and Unlock closes it.
type FileBackend struct {
	h *txfile.Handler
}

// NewFile returns an [Access] for the file at path. opts configure the
// underlying handler.
func NewFile(path string, opts ...txfile.Option) (*Access, error) {
	h, err := txfile.New(path, opts...)
	if err != nil {
		return nil, err
	}

	return New(&FileBackend{h: h}), nil
}

// NewFileBackend wraps an existing handler.
func NewFileBackend(h *txfile.Handler) *FileBackend {
	return &FileBackend{h: h}
}

// Handler returns the underlying handler.
func (f *FileBackend) Handler() *txfile.Handler { return f.h }

func (f *FileBackend) Capabilities() Capabilities {
	return Capabilities{Seek: true, Lock: true, Atomic: true}
}

func (f *FileBackend) Position() (int64, error) {
	ch, err := f.h.Channel()
	if err != nil {
		return 0, err
	}

	return ch.Seek(0, io.SeekCurrent)
}

func (f *FileBackend) Length() (int64, error) {
	ch, err := f.h.Channel()
	if err != nil {
		return 0, err
	}

	info, err := ch.Stat()
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

func (f *FileBackend) SetLength(n int64) error {
	ch, err := f.h.ChannelToWrite()
	if err != nil {
		return err
	}

	return ch.Truncate(n)
}

func (f *FileBackend) Seek(pos int64) error {
	ch, err := f.h.Channel()
	if err != nil {
		return err
	}

	_, err = ch.Seek(pos, io.SeekStart)

	return err
}

func (f *FileBackend) LockShared() error         { return f.h.OpenReadable() }
func (f *FileBackend) LockExclusive() error      { return f.h.OpenWritable() }
func (f *FileBackend) LockType() txfile.LockType { return f.h.LockType() }
func (f *FileBackend) Unlock() error             { return f.h.Close() }

func (f *FileBackend) AtomicMode() bool                    { return f.h.AtomicMode() }
func (f *FileBackend) SetAtomicMode(on bool) error         { return f.h.SetAtomicMode(on) }
func (f *FileBackend) SetSyncMode(m txfile.SyncMode) error { return f.h.SetSyncMode(m) }
func (f *FileBackend) Commit() error                       { return f.h.Commit() }
func (f *FileBackend) Revert() error                       { return f.h.Revert() }
func (f *FileBackend) BeginOverwrite() error               { return f.h.BeginOverwrite() }
func (f *FileBackend) BeginAppend() error                  { return f.h.BeginAppend() }

// Input returns a reader. If the handler is closed it is opened readable
// for the lifetime of the reader and closed with it.
func (f *FileBackend) Input() (io.ReadCloser, error) {
	managed := !f.h.IsOpen()
	if managed {
		if err := f.h.OpenReadable(); err != nil {
			return nil, err
		}
	}

	r, err := f.h.NewReader()
	if err != nil {
		if managed {
			err = errors.Join(err, f.h.Close())
		}

		return nil, err
	}

	steps := []func() error{r.Close}
	if managed {
		steps = append(steps, f.h.Close)
	}

	return txfile.NewScopedReader(r, steps...), nil
}

// Output returns a writer. If the handler is closed it is opened writable
// for the lifetime of the writer, and closing the writer commits and
// closes it.
func (f *FileBackend) Output() (io.WriteCloser, error) {
	managed := !f.h.IsOpen()
	if managed {
		if err := f.h.OpenWritable(); err != nil {
			return nil, err
		}
	}

	w, err := f.h.NewWriter()
	if err != nil {
		if managed {
			err = errors.Join(err, f.h.Close())
		}

		return nil, err
	}

	steps := []func() error{w.Close}
	if managed {
		steps = append(steps, f.h.CommitAndClose)
	}

	return txfile.NewScopedWriter(w, steps...), nil
}

func (f *FileBackend) Close() error { return f.h.Close() }

var (
	_ Backend       = (*FileBackend)(nil)
	_ Seeker        = (*FileBackend)(nil)
	_ Locker        = (*FileBackend)(nil)
	_ Transactional = (*FileBackend)(nil)
	_ Syncer        = (*FileBackend)(nil)
	_ WriteModer    = (*FileBackend)(nil)
)
