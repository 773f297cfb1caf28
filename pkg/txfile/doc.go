// Package txfile provides transactional access to a single on-disk file.
//
// A [Handler] owns the open descriptors, advisory locks and write-transaction
// state for one target file. Readers take a shared lock, writers take an
// exclusive lock. Locks are advisory: only cooperating processes that use
// txfile (or the same locking protocol) respect them.
//
// # Atomic mode
//
// In atomic mode writes never touch the target. They land in a hidden sibling
// edit file and become visible with a single rename on [Handler.Commit]:
//
//	dir/.~name.lock   coordination lock, held for the lifetime of the handler
//	dir/.~name.edit   pending write transaction
//
// A reader therefore sees either the content before a transaction or the
// fully committed content, never a mix. [Handler.Revert] discards the edit
// file and leaves the target untouched.
//
// Without atomic mode, writes go straight to the target under a byte-range
// lock and a failed write may leave it partially written.
//
// # Durability
//
// [SyncMode] controls what is forced to stable storage on commit and close.
// [SyncDataAndMeta] also syncs the parent directory after a rename so the
// commit itself survives a crash.
//
// # Concurrency
//
// A Handler is not safe for concurrent use. Confine each Handler to one
// goroutine, or synchronize externally. Two Handlers on the same file (in the
// same process or in different processes) coordinate through the advisory
// locks.
//
// This package is Unix-only.
package txfile
