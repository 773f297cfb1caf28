package txfile

import (
	"errors"
	"io"
	"os"
)

// closeSteps runs a fixed cleanup sequence once.
type closeSteps struct {
	steps  []func() error
	closed bool
}

func (c *closeSteps) run() error {
	if c.closed {
		return nil
	}

	c.closed = true

	var errs []error
	for _, step := range c.steps {
		if step != nil {
			errs = append(errs, step())
		}
	}

	return errors.Join(errs...)
}

// ScopedReader is a reader whose Close runs a fixed list of cleanup steps,
// such as releasing a lock taken for the read.
//
// Close runs every step even if an earlier one fails, and is idempotent.
// Closing the reader never closes the underlying file.
type ScopedReader struct {
	r    io.Reader
	done closeSteps
}

// NewScopedReader wraps r. steps run in order on Close.
func NewScopedReader(r io.Reader, steps ...func() error) *ScopedReader {
	return &ScopedReader{r: r, done: closeSteps{steps: steps}}
}

func (s *ScopedReader) Read(p []byte) (int, error) {
	if s.done.closed {
		return 0, os.ErrClosed
	}

	return s.r.Read(p)
}

// Close runs the cleanup steps.
func (s *ScopedReader) Close() error {
	return s.done.run()
}

// ScopedWriter is a writer whose Close runs a fixed list of cleanup steps,
// typically flush, optionally commit, and optionally unlock.
//
// Close runs every step even if an earlier one fails, and is idempotent.
// Closing the writer never closes the underlying file.
type ScopedWriter struct {
	w    io.Writer
	done closeSteps
}

// NewScopedWriter wraps w. steps run in order on Close.
func NewScopedWriter(w io.Writer, steps ...func() error) *ScopedWriter {
	return &ScopedWriter{w: w, done: closeSteps{steps: steps}}
}

func (s *ScopedWriter) Write(p []byte) (int, error) {
	if s.done.closed {
		return 0, os.ErrClosed
	}

	return s.w.Write(p)
}

// Close runs the cleanup steps.
func (s *ScopedWriter) Close() error {
	return s.done.run()
}

var (
	_ io.ReadCloser  = (*ScopedReader)(nil)
	_ io.WriteCloser = (*ScopedWriter)(nil)
)
