package fs

import (
	"os"
	"strings"
	"sync"
	"time"
)

// Op names an operation [Faulty] can fail.
type Op string

// Operations that can be targeted by a [Fault].
const (
	OpOpen    Op = "open"
	OpRead    Op = "read"
	OpWrite   Op = "write"
	OpSync    Op = "sync"
	OpStat    Op = "stat"
	OpChtimes Op = "chtimes"
	OpRemove  Op = "remove"
	OpRename  Op = "rename"
	OpReplace Op = "replace"
)

// Fault describes an injected failure.
type Fault struct {
	// Op is the operation to fail.
	Op Op

	// Match selects the paths the fault applies to. Nil matches every path.
	// For Rename and Replace the source path is matched.
	Match func(path string) bool

	// Err is returned (wrapped in [InjectedError]) when the fault fires.
	Err error

	// Times limits how often the fault fires. Zero means every time.
	Times int
}

// HasSuffix returns a [Fault.Match] func matching paths ending in suffix.
func HasSuffix(suffix string) func(string) bool {
	return func(path string) bool { return strings.HasSuffix(path, suffix) }
}

// Faulty wraps an [FS] and fails operations according to injected [Fault]s.
//
// Unlike a random fault injector, Faulty is deterministic: a fault fires on
// exactly the operations it matches, which makes it suitable for testing one
// failure path at a time. Files opened through Faulty also consult the faults
// for Read, ReadAt, Write and Sync.
//
// Faulty is safe for concurrent use.
type Faulty struct {
	fs FS

	mu     sync.Mutex
	faults []*faultState
	calls  map[Op]int
}

type faultState struct {
	Fault
	fired int
}

// NewFaulty creates a Faulty filesystem wrapping fs with no faults installed.
func NewFaulty(fs FS) *Faulty {
	return &Faulty{fs: fs, calls: make(map[Op]int)}
}

// Inject installs a fault. Faults are checked in installation order.
func (f *Faulty) Inject(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.faults = append(f.faults, &faultState{Fault: fault})
}

// Clear removes all installed faults. Call counters are kept.
func (f *Faulty) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.faults = nil
}

// Calls returns how many times op was attempted, including failed attempts.
func (f *Faulty) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[op]
}

func (f *Faulty) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op]++

	for _, st := range f.faults {
		if st.Op != op {
			continue
		}

		if st.Match != nil && !st.Match(path) {
			continue
		}

		if st.Times > 0 && st.fired >= st.Times {
			continue
		}

		st.fired++

		return &InjectedError{Op: string(op), Path: path, Err: st.Err}
	}

	return nil
}

func (f *Faulty) Open(path string) (File, error) {
	if err := f.check(OpOpen, path); err != nil {
		return nil, err
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &faultyFile{File: file, owner: f}, nil
}

func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.check(OpOpen, path); err != nil {
		return nil, err
	}

	file, err := f.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultyFile{File: file, owner: f}, nil
}

func (f *Faulty) ReadDir(path string) ([]os.DirEntry, error) {
	return f.fs.ReadDir(path)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if err := f.check(OpStat, path); err != nil {
		return nil, err
	}

	return f.fs.Stat(path)
}

func (f *Faulty) Exists(path string) (bool, error) {
	if err := f.check(OpStat, path); err != nil {
		return false, err
	}

	return f.fs.Exists(path)
}

func (f *Faulty) Chtimes(path string, atime, mtime time.Time) error {
	if err := f.check(OpChtimes, path); err != nil {
		return err
	}

	return f.fs.Chtimes(path, atime, mtime)
}

func (f *Faulty) Remove(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}

	return f.fs.Remove(path)
}

func (f *Faulty) Rename(oldpath, newpath string) error {
	if err := f.check(OpRename, oldpath); err != nil {
		return err
	}

	return f.fs.Rename(oldpath, newpath)
}

func (f *Faulty) Replace(oldpath, newpath string) error {
	if err := f.check(OpReplace, oldpath); err != nil {
		return err
	}

	return f.fs.Replace(oldpath, newpath)
}

// faultyFile consults the owning [Faulty] before data operations.
type faultyFile struct {
	File
	owner *Faulty
}

func (f *faultyFile) Read(p []byte) (int, error) {
	if err := f.owner.check(OpRead, f.Name()); err != nil {
		return 0, err
	}

	return f.File.Read(p)
}

func (f *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if err := f.owner.check(OpRead, f.Name()); err != nil {
		return 0, err
	}

	return f.File.ReadAt(p, off)
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if err := f.owner.check(OpWrite, f.Name()); err != nil {
		return 0, err
	}

	return f.File.Write(p)
}

func (f *faultyFile) Sync() error {
	if err := f.owner.check(OpSync, f.Name()); err != nil {
		return err
	}

	return f.File.Sync()
}

// Compile-time interface checks.
var (
	_ FS   = (*Faulty)(nil)
	_ File = (*faultyFile)(nil)
)
