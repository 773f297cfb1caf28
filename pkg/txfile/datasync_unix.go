//go:build unix && !linux

package txfile

import (
	"github.com/calvinalkan/txfile/pkg/fs"
)

// datasync is a full sync where fdatasync(2) is not available.
func datasync(f fs.File) error {
	return f.Sync()
}
