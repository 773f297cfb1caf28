// Package fs provides the filesystem abstraction used by txfile.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] package
//   - [Faulty]: testing implementation that fails selected operations on demand
//
// Example usage:
//
//	fsys := fs.NewReal()
//	f, err := fsys.OpenFile("data.bin", os.O_RDWR|os.O_CREATE, 0o644)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
package fs

import (
	"io"
	"os"
	"time"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader], [io.Writer],
// [io.Seeker], [io.ReaderAt] or [io.Closer].
//
// Implementations must behave like [os.File], including that [File.Fd]
// returns a valid OS file descriptor usable with fcntl/flock until the file
// is closed. Advisory locks in txfile are taken on that descriptor.
type File interface {
	io.ReadWriteCloser
	io.Seeker
	io.ReaderAt

	// Name returns the name the file was opened with. See [os.File.Name].
	Name() string

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents and metadata to disk. See [os.File.Sync].
	Sync() error

	// Truncate changes the size of the file. See [os.File.Truncate].
	// It does not change the I/O offset.
	Truncate(size int64) error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS defines the filesystem operations txfile needs.
//
// All methods mirror their [os] package equivalents but can be intercepted
// for testing with fault injection. Paths use OS semantics.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadDir reads a directory and returns its entries. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Chtimes changes the access and modification times. See [os.Chtimes].
	Chtimes(path string, atime, mtime time.Time) error

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename moves/renames a file. See [os.Rename].
	Rename(oldpath, newpath string) error

	// Replace atomically replaces newpath with oldpath where the platform
	// supports it. On unix this is a rename.
	Replace(oldpath, newpath string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
