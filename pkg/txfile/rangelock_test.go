package txfile_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/txfile/pkg/txfile"
)

func openRW(t *testing.T, path string) *os.File {
	t.Helper()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile(%q): %v", path, err)
	}

	t.Cleanup(func() { _ = f.Close() })

	return f
}

func Test_RangeLock_Conflicts_Between_Descriptors_In_Same_Process(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	a := openRW(t, path)
	b := openRW(t, path)

	lk, err := txfile.TryLockRange(a, txfile.LockExclusive)
	if err != nil {
		t.Fatalf("TryLockRange(a): %v", err)
	}

	if _, err := txfile.TryLockRange(b, txfile.LockShared); !errors.Is(err, txfile.ErrWouldBlock) {
		t.Fatalf("TryLockRange(b): err=%v, want %v", err, txfile.ErrWouldBlock)
	}

	if err := lk.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	lk2, err := txfile.TryLockRange(b, txfile.LockShared)
	if err != nil {
		t.Fatalf("TryLockRange(b) after release: %v", err)
	}

	if got, want := lk2.Type(), txfile.LockShared; got != want {
		t.Fatalf("Type=%v, want %v", got, want)
	}
}

func Test_RangeLock_Allows_Multiple_Shared_Holders(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	a := openRW(t, path)
	b := openRW(t, path)

	for _, f := range []*os.File{a, b} {
		if _, err := txfile.TryLockRange(f, txfile.LockShared); err != nil {
			t.Fatalf("TryLockRange(%s, shared): %v", f.Name(), err)
		}
	}
}

func Test_RangeLock_Release_Is_Idempotent_And_Invalidates(t *testing.T) {
	t.Parallel()

	f := openRW(t, filepath.Join(t.TempDir(), "data"))

	lk, err := txfile.TryLockRange(f, txfile.LockExclusive)
	if err != nil {
		t.Fatalf("TryLockRange: %v", err)
	}

	if !lk.Valid() {
		t.Fatal("Valid()=false right after acquiring")
	}

	for i := range 2 {
		if err := lk.Release(); err != nil {
			t.Fatalf("Release #%d: %v", i+1, err)
		}
	}

	if lk.Valid() {
		t.Fatal("Valid()=true after Release")
	}

	if got, want := lk.Type(), txfile.LockNone; got != want {
		t.Fatalf("Type=%v, want %v", got, want)
	}
}

func Test_TryLockRange_Rejects_LockNone(t *testing.T) {
	t.Parallel()

	f := openRW(t, filepath.Join(t.TempDir(), "data"))

	if _, err := txfile.TryLockRange(f, txfile.LockNone); !errors.Is(err, errors.ErrUnsupported) {
		t.Fatalf("TryLockRange(none): err=%v, want %v", err, errors.ErrUnsupported)
	}
}
