package txfile

import (
	"fmt"
	"strings"
)

// LockType is the kind of advisory lock a [Handler] holds.
type LockType int

const (
	// LockNone means no lock is held.
	LockNone LockType = iota
	// LockShared allows other shared holders but excludes exclusive ones.
	LockShared
	// LockExclusive excludes every other holder.
	LockExclusive
)

func (t LockType) String() string {
	switch t {
	case LockNone:
		return "none"
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("LockType(%d)", int(t))
	}
}

// WriteMode describes how the current write transaction started.
type WriteMode int

const (
	// WriteNone means no write transaction was begun explicitly.
	WriteNone WriteMode = iota
	// WriteOverwrite starts from an empty file.
	WriteOverwrite
	// WriteAppend starts from the current content with the cursor at the end.
	WriteAppend
)

func (m WriteMode) String() string {
	switch m {
	case WriteNone:
		return "none"
	case WriteOverwrite:
		return "overwrite"
	case WriteAppend:
		return "append"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// SyncMode controls what is forced to stable storage.
type SyncMode int

const (
	// SyncDataAndMeta syncs file data and metadata, and the parent directory
	// after a commit rename. It is the zero value and the default.
	SyncDataAndMeta SyncMode = iota
	// SyncData syncs file data only (fdatasync where available).
	SyncData
	// NoSync leaves flushing to the operating system.
	NoSync
)

func (m SyncMode) String() string {
	switch m {
	case NoSync:
		return "none"
	case SyncData:
		return "data"
	case SyncDataAndMeta:
		return "meta"
	default:
		return fmt.Sprintf("SyncMode(%d)", int(m))
	}
}

// ParseSyncMode parses the names printed by [SyncMode.String].
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "nosync":
		return NoSync, nil
	case "data":
		return SyncData, nil
	case "meta", "", "data+meta":
		return SyncDataAndMeta, nil
	default:
		return 0, fmt.Errorf("invalid sync mode %q (want none, data or meta)", s)
	}
}
