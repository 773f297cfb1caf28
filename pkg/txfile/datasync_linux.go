package txfile

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/txfile/pkg/fs"
)

// datasync flushes file data without forcing a metadata update.
// Wrapped files (for example fault injectors) fall back to Sync.
func datasync(f fs.File) error {
	osf, ok := f.(*os.File)
	if !ok {
		return f.Sync()
	}

	err := retryEINTR(func() error { return unix.Fdatasync(int(osf.Fd())) })
	if err != nil {
		return &os.PathError{Op: "fdatasync", Path: osf.Name(), Err: err}
	}

	return nil
}
