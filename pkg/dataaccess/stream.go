package dataaccess

import (
	"io"
)

// StreamBackend is a [Backend] over plain stream factories, such as
// standard input and output. It cannot seek, lock or commit.
type StreamBackend struct {
	open   func() (io.ReadCloser, error)
	create func() (io.WriteCloser, error)
}

// NewStream returns an [Access] reading from open and writing to create.
// Either may be nil, in which case that direction is unsupported.
func NewStream(open func() (io.ReadCloser, error), create func() (io.WriteCloser, error)) *Access {
	return New(&StreamBackend{open: open, create: create})
}

func (s *StreamBackend) Capabilities() Capabilities { return Capabilities{} }

func (s *StreamBackend) Input() (io.ReadCloser, error) {
	if s.open == nil {
		return nil, unsupported("input")
	}

	return s.open()
}

func (s *StreamBackend) Output() (io.WriteCloser, error) {
	if s.create == nil {
		return nil, unsupported("output")
	}

	return s.create()
}

func (s *StreamBackend) Close() error { return nil }

var _ Backend = (*StreamBackend)(nil)
