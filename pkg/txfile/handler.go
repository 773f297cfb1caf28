package txfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/txfile/pkg/fs"
	"github.com/calvinalkan/txfile/pkg/retry"
)

// Handler holds the open descriptors, locks and write-transaction state of
// one target file.
//
// Lifecycle:
//
//	New -> OpenReadable/OpenWritable -> [BeginOverwrite/BeginAppend, writes]
//	    -> Commit/Revert -> Close
//
// The target itself is always opened and range-locked, so atomic and direct
// handlers on the same path exclude each other. In atomic mode the handler
// also locks the hidden lock file, writes go to the hidden edit file, and
// Commit renames the edit file over the target.
//
// A Handler is not safe for concurrent use.
type Handler struct {
	path     string
	lockPath string
	editPath string

	fs      fs.FS
	policy  retry.Policy
	log     *slog.Logger
	metrics Metrics

	atomic   bool
	syncMode SyncMode

	open      bool
	lockType  LockType
	writeMode WriteMode

	main     fs.File
	mainLock *RangeLock
	coord    *coordLock

	// placeholder is true while the target is the empty file an atomic
	// writer created to hold its lock.
	placeholder bool

	// edit is the open edit file. editOwned is true while the edit file on
	// disk belongs to this handler's transaction, even when edit is closed.
	edit      fs.File
	editOwned bool

	leak *leakState
}

// leakState is shared with the GC cleanup. It must not reference the Handler.
type leakState struct {
	path string
	log  *slog.Logger
	open atomic.Bool
}

// New returns a closed handler for the file at path. The file does not need
// to exist.
func New(path string, opts ...Option) (*Handler, error) {
	if path == "" {
		return nil, errors.New("txfile: empty path")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("txfile: resolving %q: %w", path, err)
	}

	h := &Handler{
		path:     abs,
		lockPath: LockPath(abs),
		editPath: EditPath(abs),
		fs:       fs.NewReal(),
		policy:   retry.Default(),
		log:      slog.Default(),
		metrics:  nopMetrics{},
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.fs == nil {
		h.fs = fs.NewReal()
	}

	if h.log == nil {
		h.log = slog.Default()
	}

	if h.metrics == nil {
		h.metrics = nopMetrics{}
	}

	if h.policy.Retryable == nil {
		h.policy.Retryable = retry.IsContention
	}

	h.leak = &leakState{path: abs, log: h.log}
	runtime.AddCleanup(h, func(s *leakState) {
		if s.open.Load() {
			s.log.Warn("txfile handler garbage collected while open, missing Close", "path", s.path)
		}
	}, h.leak)

	return h, nil
}

// Path returns the absolute target path.
func (h *Handler) Path() string { return h.path }

// LockPath returns the coordination lock file path.
func (h *Handler) LockPath() string { return h.lockPath }

// EditPath returns the edit file path.
func (h *Handler) EditPath() string { return h.editPath }

// IsOpen reports whether the handler is open.
func (h *Handler) IsOpen() bool { return h.open }

// WriteMode returns how the current write transaction began.
func (h *Handler) WriteMode() WriteMode { return h.writeMode }

// AtomicMode reports whether atomic mode is enabled.
func (h *Handler) AtomicMode() bool { return h.atomic }

// SetAtomicMode enables or disables atomic mode. It fails with [ErrOpen]
// while the handler is open.
func (h *Handler) SetAtomicMode(on bool) error {
	if h.open {
		return h.wrap("set-atomic", ErrOpen)
	}

	h.atomic = on

	return nil
}

// SyncMode returns the sync mode.
func (h *Handler) SyncMode() SyncMode { return h.syncMode }

// SetSyncMode sets the sync mode. It fails with [ErrOpen] while the handler
// is open.
func (h *Handler) SetSyncMode(m SyncMode) error {
	if h.open {
		return h.wrap("set-sync", ErrOpen)
	}

	h.syncMode = m

	return nil
}

// LockType returns the lock currently held. In atomic mode this is the lock
// on the lock file; the target carries a lock of the same type whenever it
// exists.
func (h *Handler) LockType() LockType {
	if !h.open {
		return LockNone
	}

	if h.atomic {
		return h.coord.Type()
	}

	return h.mainLock.Type()
}

// Exists reports whether the target file exists.
func (h *Handler) Exists() (bool, error) {
	return h.fs.Exists(h.path)
}

// OpenReadable opens the handler with a shared lock. It is a no-op if the
// handler is already open with a shared lock.
func (h *Handler) OpenReadable() error {
	return h.wrap("open", h.openWith(LockShared))
}

// OpenWritable opens the handler with an exclusive lock, creating the target
// if it does not exist. In atomic mode a target created this way is removed
// again on Close unless a commit replaced it. It is a no-op if the handler is
// already exclusively open.
func (h *Handler) OpenWritable() error {
	return h.wrap("open", h.openWith(LockExclusive))
}

// openWith acquires lt. An open handler with a different lock type is
// released first; the lock is not upgraded atomically.
func (h *Handler) openWith(lt LockType) error {
	if h.open {
		if h.lockType == lt {
			return nil
		}

		if h.writePending() {
			return ErrWriteInProgress
		}

		if err := h.release(); err != nil {
			return err
		}
	}

	SweepPendingRemovals(h.log)

	start := time.Now()
	err := h.acquire(lt)
	h.metrics.LockAcquired(lt, time.Since(start), err)

	if err != nil {
		return err
	}

	h.open = true
	h.lockType = lt
	h.leak.open.Store(true)

	h.log.Debug("opened", "path", h.path, "lock", lt, "atomic", h.atomic)

	return nil
}

// acquire takes the locks of a closed handler: the coordination lock and
// then the target in atomic mode, the target alone otherwise.
func (h *Handler) acquire(lt LockType) error {
	if !h.atomic {
		return h.openMain(lt)
	}

	var lk *coordLock

	err := h.retryLock(func() error {
		var err error
		lk, err = tryCoordLock(h.fs, h.lockPath, lt)

		return err
	})
	if err != nil {
		return err
	}

	h.coord = lk

	// A missing target is locked lazily once a commit creates it.
	err = h.openMain(lt)
	if err != nil && (lt == LockExclusive || !errors.Is(err, os.ErrNotExist)) {
		_, _, _ = h.coord.release(h.fs)
		h.coord = nil

		return err
	}

	return nil
}

// openMain opens the target and range-locks it with lt.
//
// Like the lock file, the target can be removed or renamed over while we
// wait on its old inode, so the path is checked again after locking.
func (h *Handler) openMain(lt LockType) error {
	var (
		f       fs.File
		lk      *RangeLock
		created bool
	)

	err := h.retryLock(func() error {
		var err error

		if lt == LockExclusive {
			f, created, err = h.openOrCreate()
		} else {
			f, err = h.fs.Open(h.path)
		}

		if err != nil {
			return err
		}

		lk, err = TryLockRange(f, lt)
		if err == nil {
			err = h.verifyMain(f)
			if err != nil {
				_ = lk.Release()
			}
		}

		if err != nil {
			_ = f.Close()
			f, lk = nil, nil

			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	h.main = f
	h.mainLock = lk
	h.placeholder = h.atomic && created

	return nil
}

// verifyMain fails with [ErrWouldBlock] when the path no longer names f.
func (h *Handler) verifyMain(f fs.File) error {
	held, err := f.Stat()
	if err != nil {
		return err
	}

	cur, err := h.fs.Stat(h.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err != nil || !os.SameFile(held, cur) {
		return fmt.Errorf("%w: %s replaced while acquiring (%w)", ErrWouldBlock, h.path, unix.EAGAIN)
	}

	return nil
}

func (h *Handler) openOrCreate() (fs.File, bool, error) {
	f, err := h.fs.OpenFile(h.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, defaultFilePerm)
	if err == nil {
		return f, true, nil
	}

	if !errors.Is(err, os.ErrExist) {
		return nil, false, err
	}

	f, err = h.fs.OpenFile(h.path, os.O_RDWR|os.O_CREATE, defaultFilePerm)

	return f, false, err
}

// dropPlaceholder removes the empty target created by openMain if it is
// still the locked file and still empty. It must run before closeMain.
func (h *Handler) dropPlaceholder() {
	if !h.placeholder || h.main == nil {
		h.placeholder = false

		return
	}

	h.placeholder = false

	held, err := h.main.Stat()
	if err != nil || held.Size() != 0 {
		return
	}

	cur, err := h.fs.Stat(h.path)
	if err != nil || !os.SameFile(held, cur) {
		return
	}

	if err := h.fs.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.log.Warn("removing empty target", "path", h.path, "err", err)
	}
}

// retryLock runs try under the retry policy. Exhausted contention is
// reported as [ErrLockTimeout].
func (h *Handler) retryLock(try func() error) error {
	start := time.Now()

	err := h.retryPolicy("lock").Do(context.Background(), try)
	wait := time.Since(start)

	if errors.Is(err, ErrWouldBlock) {
		return fmt.Errorf("%w after %s: %w", ErrLockTimeout, wait.Round(time.Millisecond), err)
	}

	return err
}

// retryPolicy returns the handler policy with logging and metrics hooked in.
func (h *Handler) retryPolicy(op string) retry.Policy {
	p := h.policy
	prev := p.OnFailure

	p.OnFailure = func(attempt uint64, err error) {
		h.metrics.Retried(op)
		h.log.Debug("retrying", "op", op, "path", h.path, "attempt", attempt, "err", err)

		if prev != nil {
			prev(attempt, err)
		}
	}

	return p
}

func (h *Handler) writePending() bool {
	return h.edit != nil || h.editOwned || h.writeMode != WriteNone
}

func (h *Handler) checkOpen() error {
	if !h.open {
		return ErrNotOpen
	}

	return nil
}

func (h *Handler) checkWritable() error {
	if !h.open {
		return ErrNotOpen
	}

	if h.lockType != LockExclusive {
		return ErrNotExclusive
	}

	return nil
}

// BeginOverwrite starts a write transaction on an empty file. Any pending
// writes of the current transaction are discarded.
func (h *Handler) BeginOverwrite() error {
	if err := h.checkWritable(); err != nil {
		return h.wrap("overwrite", err)
	}

	h.writeMode = WriteOverwrite

	w, err := h.ChannelToWrite()
	if err != nil {
		return err
	}

	if err := w.Truncate(0); err != nil {
		return h.wrap("overwrite", err)
	}

	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return h.wrap("overwrite", err)
	}

	return nil
}

// BeginAppend starts a write transaction positioned at the end of the
// current content.
func (h *Handler) BeginAppend() error {
	if err := h.checkWritable(); err != nil {
		return h.wrap("append", err)
	}

	h.writeMode = WriteAppend

	w, err := h.ChannelToWrite()
	if err != nil {
		return err
	}

	if _, err := w.Seek(0, io.SeekEnd); err != nil {
		return h.wrap("append", err)
	}

	return nil
}

// Channel returns the current file: the edit file while a transaction is
// pending in atomic mode, otherwise the target (opened lazily).
func (h *Handler) Channel() (fs.File, error) {
	if err := h.checkOpen(); err != nil {
		return nil, h.wrap("channel", err)
	}

	if h.edit != nil {
		return h.edit, nil
	}

	return h.ensureMain()
}

// ChannelToRead returns the file to read from. Inside an atomic transaction
// that is the edit file, so pending writes are visible to this handler.
func (h *Handler) ChannelToRead() (fs.File, error) {
	return h.Channel()
}

// ChannelToWrite returns the file writes should go to, opening it lazily.
// In atomic mode this is the edit file; a write without BeginOverwrite or
// BeginAppend starts from a copy of the target at offset 0.
func (h *Handler) ChannelToWrite() (fs.File, error) {
	if err := h.checkWritable(); err != nil {
		return nil, h.wrap("channel", err)
	}

	if !h.atomic {
		return h.ensureMain()
	}

	f, err := h.ensureEdit()
	if err != nil {
		return nil, h.wrap("edit", err)
	}

	return f, nil
}

func (h *Handler) ensureMain() (fs.File, error) {
	if h.main != nil {
		return h.main, nil
	}

	if err := h.openMain(h.lockType); err != nil {
		return nil, h.wrap("open", err)
	}

	return h.main, nil
}

// ensureEdit opens the edit file for the current write mode.
func (h *Handler) ensureEdit() (fs.File, error) {
	if h.edit != nil {
		return h.edit, nil
	}

	perm := h.targetPerm()

	if h.writeMode == WriteOverwrite {
		if !h.editOwned {
			if stale, _ := h.fs.Exists(h.editPath); stale {
				h.log.Warn("discarding stale edit file", "edit", h.editPath)
			}
		}

		f, err := h.fs.OpenFile(h.editPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
		if err != nil {
			return nil, err
		}

		h.edit, h.editOwned = f, true

		return f, nil
	}

	f, err := h.prepareEditCopy(perm)
	if err != nil {
		return nil, err
	}

	h.edit, h.editOwned = f, true

	return f, nil
}

// prepareEditCopy creates the edit file as a copy of the target with the
// cursor at 0. If copying by path fails the content is streamed from the
// open target instead.
func (h *Handler) prepareEditCopy(perm os.FileMode) (fs.File, error) {
	exists, err := h.fs.Exists(h.path)
	if err != nil {
		return nil, err
	}

	if !exists {
		return h.fs.OpenFile(h.editPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	}

	copyErr := copyFile(h.fs, h.path, h.editPath, true, NoSync)
	if copyErr == nil {
		return h.fs.OpenFile(h.editPath, os.O_RDWR, perm)
	}

	h.log.Debug("copying target to edit file failed, streaming instead", "path", h.path, "err", copyErr)

	main, err := h.ensureMain()
	if err != nil {
		return nil, errors.Join(copyErr, err)
	}

	info, err := main.Stat()
	if err != nil {
		return nil, err
	}

	f, err := h.fs.OpenFile(h.editPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return nil, err
	}

	// ReadAt leaves the target's own offset untouched.
	if _, err := io.Copy(f, io.NewSectionReader(main, 0, info.Size())); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("streaming %s to edit file: %w", h.path, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()

		return nil, err
	}

	return f, nil
}

func (h *Handler) targetPerm() os.FileMode {
	info, err := h.fs.Stat(h.path)
	if err != nil {
		return defaultFilePerm
	}

	return info.Mode().Perm()
}

// NewReader returns a reader over [Handler.ChannelToRead]. Closing it does
// not close the handler.
func (h *Handler) NewReader() (*ScopedReader, error) {
	f, err := h.ChannelToRead()
	if err != nil {
		return nil, err
	}

	return NewScopedReader(f), nil
}

// NewWriter returns a writer over [Handler.ChannelToWrite]. Closing it
// flushes; it does not commit.
func (h *Handler) NewWriter() (*ScopedWriter, error) {
	f, err := h.ChannelToWrite()
	if err != nil {
		return nil, err
	}

	return NewScopedWriter(f, h.Flush), nil
}

// Flush forces pending writes to storage according to the sync mode.
func (h *Handler) Flush() error {
	switch {
	case h.edit != nil:
		return h.wrap("flush", syncFile(h.edit, h.syncMode))
	case h.main != nil && h.lockType == LockExclusive && !h.atomic:
		return h.wrap("flush", syncFile(h.main, h.syncMode))
	default:
		return nil
	}
}

// Sync forces the target to storage according to the sync mode. It is a
// no-op unless the handler writes the target directly.
func (h *Handler) Sync() error {
	if h.atomic || h.main == nil || h.lockType != LockExclusive {
		return nil
	}

	return h.wrap("sync", syncFile(h.main, h.syncMode))
}

// Commit ends the write transaction.
//
// In atomic mode the edit file is synced and renamed over the target. If the
// rename is not supported (for example across devices) the content is copied
// instead, which is not atomic. On failure the transaction is reverted and
// the target is left as it was. Without atomic mode Commit only syncs.
//
// Commit on a closed handler is a no-op.
func (h *Handler) Commit() error {
	return h.wrap("commit", h.commit())
}

func (h *Handler) commit() error {
	if !h.open {
		return nil
	}

	if !h.atomic || (h.edit == nil && !h.editOwned) {
		h.writeMode = WriteNone

		return h.Sync()
	}

	if h.edit != nil {
		syncErr := syncFile(h.edit, h.syncMode)
		closeErr := h.edit.Close()
		h.edit = nil

		if err := errors.Join(syncErr, closeErr); err != nil {
			h.discardEdit()

			return err
		}
	}

	if err := h.replace(h.editPath, false); err != nil {
		h.discardEdit()

		return err
	}

	h.editOwned = false
	h.writeMode = WriteNone

	return nil
}

// CommitAndClose commits and closes. The handler is closed even if the
// commit fails.
func (h *Handler) CommitAndClose() error {
	commitErr := h.Commit()
	closeErr := h.Close()

	return errors.Join(commitErr, closeErr)
}

// Revert discards the pending write transaction. In atomic mode the edit
// file is closed and removed; the target is never touched.
func (h *Handler) Revert() error {
	if h.atomic {
		h.discardEdit()
	}

	h.writeMode = WriteNone

	return nil
}

// discardEdit closes and removes this handler's edit file. Failures are
// logged; removal is retried later by [SweepPendingRemovals].
func (h *Handler) discardEdit() {
	had := h.edit != nil || h.editOwned

	if h.edit != nil {
		if err := h.edit.Close(); err != nil {
			h.log.Warn("closing edit file", "edit", h.editPath, "err", err)
		}

		h.edit = nil
	}

	if h.editOwned {
		removeOrDefer(h.fs, h.editPath, h.log, h.metrics)
		h.editOwned = false
	}

	h.writeMode = WriteNone

	if had {
		h.metrics.Reverted()
	}
}

// ReplaceByMove replaces the target with source by renaming it, falling back
// to copying when rename is not supported. Any pending transaction is
// discarded. With copyAttributes the mode and modification time of source
// are kept on the copy fallback; a rename keeps them anyway.
func (h *Handler) ReplaceByMove(source string, copyAttributes bool) error {
	if err := h.checkWritable(); err != nil {
		return h.wrap("replace", err)
	}

	if h.atomic && source == h.editPath {
		return h.wrap("replace", h.commit())
	}

	if err := h.replace(source, copyAttributes); err != nil {
		return h.wrap("replace", err)
	}

	if h.atomic {
		h.discardEdit()
	}

	h.writeMode = WriteNone

	return nil
}

// ReplaceByCopy replaces the target with a copy of source. The copy is
// staged in the edit file and renamed over the target, so source is left
// in place and readers never see a partial copy.
func (h *Handler) ReplaceByCopy(source string, copyAttributes bool) error {
	if err := h.checkWritable(); err != nil {
		return h.wrap("replace", err)
	}

	if h.edit != nil || h.editOwned {
		h.discardEdit()
	}

	if err := copyFile(h.fs, source, h.editPath, copyAttributes, h.syncMode); err != nil {
		removeOrDefer(h.fs, h.editPath, h.log, h.metrics)

		return h.wrap("replace", err)
	}

	h.editOwned = true

	if err := h.replace(h.editPath, copyAttributes); err != nil {
		h.discardEdit()

		return h.wrap("replace", err)
	}

	h.editOwned = false
	h.writeMode = WriteNone

	return nil
}

// replace moves source over the target. Transient rename failures are
// retried; a rename that cannot work falls back to copy-then-remove.
func (h *Handler) replace(source string, copyAttrs bool) error {
	start := time.Now()
	copied := false

	p := h.retryPolicy("replace").WithRetryable(func(err error) bool {
		return !isRenameUnsupported(err) && h.policy.Retryable(err)
	})

	err := p.Do(context.Background(), func() error {
		return h.fs.Replace(source, h.path)
	})
	if err != nil && isRenameUnsupported(err) {
		h.log.Debug("atomic rename not supported, copying", "source", source, "path", h.path, "err", err)

		copied = true
		err = h.replaceByCopying(source, copyAttrs)
	}

	if err == nil {
		// The old descriptor and its lock refer to the replaced inode.
		h.placeholder = false
		err = h.closeMain()

		if err == nil && h.syncMode == SyncDataAndMeta {
			err = fsyncDir(h.fs, filepath.Dir(h.path))
		}

		if err == nil && h.open {
			_, err = h.ensureMain()
		}
	}

	h.metrics.Committed(time.Since(start), copied, err)

	if err == nil {
		h.log.Debug("replaced", "path", h.path, "source", source, "copied", copied)
	}

	return err
}

// replaceByCopying writes source's content over the target in place and
// removes source. It is not atomic.
func (h *Handler) replaceByCopying(source string, copyAttrs bool) error {
	if err := copyFile(h.fs, source, h.path, copyAttrs, h.syncMode); err != nil {
		return err
	}

	if err := h.fs.Remove(source); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.log.Warn("removing replaced source", "source", source, "err", err)
	}

	return nil
}

// Delete discards any pending transaction and removes the target. It
// reports whether a file was removed.
//
// A closed handler takes the exclusive lock for the removal and is closed
// again afterwards. Without atomic mode the handler is closed, since the
// lock lived on the removed file. In atomic mode an open handler keeps the
// coordination lock.
func (h *Handler) Delete() (bool, error) {
	if h.open && h.lockType != LockExclusive {
		return false, h.wrap("delete", ErrNotExclusive)
	}

	if !h.open {
		exists, err := h.fs.Exists(h.path)
		if err != nil {
			return false, h.wrap("delete", err)
		}

		if !exists {
			return false, nil
		}

		if err := h.openWith(LockExclusive); err != nil {
			return false, h.wrap("delete", err)
		}

		defer func() { _ = h.Close() }()
	}

	_ = h.Revert()

	// Removing our own placeholder does not count as deleting a file.
	placeholder := h.placeholder
	h.placeholder = false

	// Remove while still locked; waiters notice the path is gone.
	removeErr := h.fs.Remove(h.path)
	removed := removeErr == nil && !placeholder

	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}

	var closeErr error
	if h.atomic {
		closeErr = h.closeMain()
	} else {
		closeErr = h.release()
	}

	if err := errors.Join(removeErr, closeErr); err != nil {
		return false, h.wrap("delete", err)
	}

	return removed, nil
}

// Close reverts a pending transaction, syncs, releases all locks and
// removes the lock file. Close is idempotent.
func (h *Handler) Close() error {
	if !h.open {
		SweepPendingRemovals(h.log)

		return nil
	}

	if h.atomic {
		h.discardEdit()
	}

	syncErr := h.Sync()
	releaseErr := h.release()

	SweepPendingRemovals(h.log)

	h.log.Debug("closed", "path", h.path)

	return h.wrap("close", errors.Join(syncErr, releaseErr))
}

// release closes all descriptors and locks and resets the state to closed.
func (h *Handler) release() error {
	var errs []error

	if h.edit != nil {
		errs = append(errs, h.edit.Close())
		h.edit = nil
	}

	h.dropPlaceholder()
	errs = append(errs, h.closeMain())

	if h.coord != nil {
		removed, removeErr, unlockErr := h.coord.release(h.fs)
		if removeErr != nil {
			h.log.Warn("removing lock file", "lock", h.lockPath, "err", removeErr)
		}

		if !removed && removeErr == nil && h.coord.lt == LockShared {
			h.log.Debug("lock file left for remaining holders", "lock", h.lockPath)
		}

		errs = append(errs, unlockErr)
		h.coord = nil
	}

	h.open = false
	h.lockType = LockNone
	h.writeMode = WriteNone
	h.leak.open.Store(false)

	return errors.Join(errs...)
}

func (h *Handler) closeMain() error {
	if h.main == nil {
		return nil
	}

	unlockErr := h.mainLock.Release()
	closeErr := h.main.Close()

	h.main = nil
	h.mainLock = nil

	return errors.Join(unlockErr, closeErr)
}

func (h *Handler) wrap(op string, err error) error {
	return withContext(err, op, h.path)
}
