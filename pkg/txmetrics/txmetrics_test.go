package txmetrics_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/txfile/pkg/dataaccess"
	"github.com/calvinalkan/txfile/pkg/txfile"
	"github.com/calvinalkan/txfile/pkg/txmetrics"
)

func Test_Metrics_Count_Locks_Commits_And_Reverts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := txmetrics.New(reg)

	da, err := dataaccess.NewFile(filepath.Join(t.TempDir(), "data"),
		txfile.WithAtomicMode(true),
		txfile.WithMetrics(m),
		txfile.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)

	require.NoError(t, da.Save([]byte("one")))
	require.NoError(t, da.Save([]byte("two")))

	require.NoError(t, da.LockExclusive())
	require.NoError(t, da.BeginOverwrite())
	require.NoError(t, da.Revert())
	require.NoError(t, da.Close())

	// Two self-locked saves and one explicit lock.
	require.InDelta(t, 3, testutil.ToFloat64(m.LockCounter("exclusive", "success")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.CommitCounter("rename", "success")), 0)

	series, err := testutil.GatherAndCount(reg, "txfile_commit_duration_milliseconds")
	require.NoError(t, err)
	require.Equal(t, 1, series)
	require.InDelta(t, 1, testutil.ToFloat64(m.RevertCounter()), 0)
}

func Test_Metrics_Label_Failed_Lock_Attempts(t *testing.T) {
	t.Parallel()

	m := txmetrics.New(prometheus.NewRegistry())
	m.LockAcquired(txfile.LockShared, 0, txfile.ErrLockTimeout)
	m.Retried("lock")
	m.Retried("lock")

	require.InDelta(t, 1, testutil.ToFloat64(m.LockCounter("shared", "error")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.RetryCounter("lock")), 0)
}

func Test_Metrics_Count_Replaces_When_Not_Atomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "incoming")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	m := txmetrics.New(prometheus.NewRegistry())

	h, err := txfile.New(filepath.Join(dir, "data"),
		txfile.WithMetrics(m),
		txfile.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)

	require.NoError(t, h.OpenWritable())
	require.NoError(t, h.ReplaceByCopy(src, false))
	require.NoError(t, h.ReplaceByMove(src, false))
	require.NoError(t, h.Close())

	require.InDelta(t, 2, testutil.ToFloat64(m.CommitCounter("rename", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.LockCounter("exclusive", "success")), 0)
}
