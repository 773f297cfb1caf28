package txfile

import (
	"log/slog"

	"github.com/calvinalkan/txfile/pkg/fs"
	"github.com/calvinalkan/txfile/pkg/retry"
)

// Option configures a [Handler].
type Option func(*Handler)

// WithFS sets the filesystem. Defaults to [fs.Real].
func WithFS(fsys fs.FS) Option {
	return func(h *Handler) { h.fs = fsys }
}

// WithRetryPolicy sets the policy used for lock acquisition and commit
// renames. Defaults to [retry.Default].
//
// If p has no classifier, only contention errors are retried.
func WithRetryPolicy(p retry.Policy) Option {
	return func(h *Handler) { h.policy = p }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithAtomicMode enables atomic mode.
func WithAtomicMode(on bool) Option {
	return func(h *Handler) { h.atomic = on }
}

// WithSyncMode sets the sync mode. Defaults to [SyncDataAndMeta].
func WithSyncMode(m SyncMode) Option {
	return func(h *Handler) { h.syncMode = m }
}
