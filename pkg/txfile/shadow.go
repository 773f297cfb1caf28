package txfile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/txfile/pkg/fs"
)

// Shadow file naming. The leading dot hides the files on unix.
const (
	shadowPrefix = ".~"
	lockSuffix   = ".lock"
	editSuffix   = ".edit"
)

const defaultFilePerm = 0o644

// LockPath returns the coordination lock file path for target.
func LockPath(target string) string {
	return shadowPath(target, lockSuffix)
}

// EditPath returns the edit file path for target.
func EditPath(target string) string {
	return shadowPath(target, editSuffix)
}

func shadowPath(target, suffix string) string {
	dir, name := filepath.Split(target)

	return filepath.Join(dir, shadowPrefix+name+suffix)
}

// isRenameUnsupported reports errors meaning the rename cannot work for
// these two paths, as opposed to failing transiently.
func isRenameUnsupported(err error) bool {
	return errors.Is(err, unix.EXDEV) || errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EINVAL)
}

// copyFile copies src to dst, replacing dst. With attrs the mode and
// modification time of src are copied too.
func copyFile(fsys fs.FS, src, dst string, attrs bool, mode SyncMode) (err error) {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}

	if err := syncFile(out, mode); err != nil {
		return err
	}

	if attrs {
		return copyAttrs(fsys, out, dst, info)
	}

	return nil
}

func copyAttrs(fsys fs.FS, out fs.File, dst string, info os.FileInfo) error {
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("copying mode to %s: %w", dst, err)
	}

	if err := fsys.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("copying times to %s: %w", dst, err)
	}

	return nil
}

// syncFile forces f to stable storage according to mode.
func syncFile(f fs.File, mode SyncMode) error {
	switch mode {
	case NoSync:
		return nil
	case SyncData:
		return datasync(f)
	default:
		return f.Sync()
	}
}

// fsyncDir makes a rename in dir durable.
func fsyncDir(fsys fs.FS, dir string) error {
	d, err := fsys.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir %q: %w", dir, err)
	}

	syncErr := d.Sync()
	closeErr := d.Close()

	if syncErr != nil {
		return fmt.Errorf("sync dir %q: %w", dir, syncErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close dir %q: %w", dir, closeErr)
	}

	return nil
}

// pendingRemovals holds edit files that could not be removed when their
// transaction ended. SweepPendingRemovals retries them.
var pendingRemovals = struct {
	sync.Mutex
	paths map[string]fs.FS
}{paths: make(map[string]fs.FS)}

// removeOrDefer removes the edit file at path, ignoring a missing file. A
// failure is logged and the path queued for [SweepPendingRemovals]; it never
// fails the caller.
func removeOrDefer(fsys fs.FS, path string, log *slog.Logger, m Metrics) {
	err := fsys.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}

	log.Warn("deferring removal of edit file", "edit", path, "err", err)
	m.RemovalDeferred()

	pendingRemovals.Lock()
	pendingRemovals.paths[path] = fsys
	pendingRemovals.Unlock()
}

// SweepPendingRemovals retries removal of edit files whose earlier removal
// failed. It returns how many paths are still pending.
//
// An edit file is only removed while holding its target's coordination lock
// exclusively, so a newer transaction on the same target is never touched.
// Handlers call it on every open and close; long-running programs may also
// call it on exit.
func SweepPendingRemovals(log *slog.Logger) int {
	pendingRemovals.Lock()
	defer pendingRemovals.Unlock()

	for path, fsys := range pendingRemovals.paths {
		target, kind, ok := parseShadowName(filepath.Base(path))
		if !ok || kind != "edit" {
			delete(pendingRemovals.paths, path)

			continue
		}

		lk, err := tryCoordLock(fsys, LockPath(filepath.Join(filepath.Dir(path), target)), LockExclusive)
		if err != nil {
			continue
		}

		err = fsys.Remove(path)
		_, _, _ = lk.release(fsys)

		if err == nil || errors.Is(err, os.ErrNotExist) {
			delete(pendingRemovals.paths, path)

			continue
		}

		if log != nil {
			log.Debug("edit file still not removable", "edit", path, "err", err)
		}
	}

	return len(pendingRemovals.paths)
}

// StaleFile is a leftover lock or edit file.
type StaleFile struct {
	// Path of the leftover file.
	Path string
	// Target is the file it belongs to.
	Target string
	// Kind is "lock" or "edit".
	Kind string
}

// FindStale lists lock and edit files in dir that no live handler holds.
//
// A shadow file is stale when the coordination lock of its target can be
// taken exclusively right now. That lock is released before returning,
// so the result is a snapshot.
func FindStale(fsys fs.FS, dir string) ([]StaleFile, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var stale []StaleFile

	for _, e := range entries {
		target, kind, ok := parseShadowName(e.Name())
		if !ok || e.IsDir() {
			continue
		}

		targetPath := filepath.Join(dir, target)
		held, err := coordHeld(fsys, targetPath)
		if err != nil {
			return nil, err
		}

		if held {
			continue
		}

		stale = append(stale, StaleFile{Path: filepath.Join(dir, e.Name()), Target: targetPath, Kind: kind})
	}

	return stale, nil
}

// RemoveStale removes the files [FindStale] reports, holding the target's
// coordination lock exclusively while removing each one.
func RemoveStale(fsys fs.FS, dir string, log *slog.Logger) ([]StaleFile, error) {
	if log == nil {
		log = slog.Default()
	}

	stale, err := FindStale(fsys, dir)
	if err != nil {
		return nil, err
	}

	var removed []StaleFile

	var errs []error

	for _, s := range stale {
		lk, err := tryCoordLock(fsys, LockPath(s.Target), LockExclusive)
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				continue
			}

			errs = append(errs, err)

			continue
		}

		if s.Kind == "edit" {
			if err := fsys.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}

		// Releasing an exclusive coordination lock removes the lock file.
		_, removeErr, unlockErr := lk.release(fsys)
		errs = append(errs, removeErr, unlockErr)

		log.Info("removed stale file", "path", s.Path, "kind", s.Kind)
		removed = append(removed, s)
	}

	return removed, errors.Join(errs...)
}

// coordHeld reports whether anyone holds the coordination lock of target.
func coordHeld(fsys fs.FS, target string) (bool, error) {
	lockPath := LockPath(target)

	exists, err := fsys.Exists(lockPath)
	if err != nil {
		return false, err
	}

	if !exists {
		return false, nil
	}

	lk, err := tryCoordLock(fsys, lockPath, LockExclusive)
	if errors.Is(err, ErrWouldBlock) {
		return true, nil
	}

	if err != nil {
		return false, err
	}

	_ = lk.fl.Unlock()

	return false, nil
}

func parseShadowName(name string) (target, kind string, ok bool) {
	rest, ok := strings.CutPrefix(name, shadowPrefix)
	if !ok {
		return "", "", false
	}

	if t, ok := strings.CutSuffix(rest, lockSuffix); ok && t != "" {
		return t, "lock", true
	}

	if t, ok := strings.CutSuffix(rest, editSuffix); ok && t != "" {
		return t, "edit", true
	}

	return "", "", false
}
