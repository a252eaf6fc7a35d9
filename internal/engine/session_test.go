package engine

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDefaults(t *testing.T) {
	sess, err := Open(Options{Console: io.Discard})
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	assert.NotEmpty(t, sess.RunID())
	assert.Positive(t, sess.Workers())
	assert.Equal(t, DefaultPartitionSize, sess.PartitionSize())
	assert.NoError(t, sess.Recorder().UpdateRunStatus(sess.RunID(), "running"))
}

func TestOpenRejectsNegativeOptions(t *testing.T) {
	_, err := Open(Options{Workers: -1})
	require.Error(t, err)

	_, err = Open(Options{PartitionSize: -5})
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	sess, err := Open(Options{DBPath: filepath.Join(t.TempDir(), "runs.db"), RunID: "run-1"})
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, "run-1", sess.RunID())
}

func TestPartitions(t *testing.T) {
	sess, err := Open(Options{PartitionSize: 3, Workers: 2})
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, sess.Partitions(0))
	})

	t.Run("uneven tail", func(t *testing.T) {
		parts := sess.Partitions(7)
		require.Len(t, parts, 3)
		assert.Equal(t, Partition{Index: 0, Start: 0, End: 3}, parts[0])
		assert.Equal(t, Partition{Index: 1, Start: 3, End: 6}, parts[1])
		assert.Equal(t, Partition{Index: 2, Start: 6, End: 7}, parts[2])
	})
}

func TestForEachPartition(t *testing.T) {
	sess, err := Open(Options{PartitionSize: 10, Workers: 4})
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	t.Run("visits every row once", func(t *testing.T) {
		seen := make([]int32, 95)
		err := sess.ForEachPartition(context.Background(), len(seen), func(_ context.Context, p Partition) error {
			for i := p.Start; i < p.End; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
			return nil
		})
		require.NoError(t, err)
		for i, n := range seen {
			assert.Equal(t, int32(1), n, "row %d", i)
		}
	})

	t.Run("returns first error", func(t *testing.T) {
		boom := errors.New("boom")
		err := sess.ForEachPartition(context.Background(), 50, func(_ context.Context, p Partition) error {
			if p.Index == 2 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := sess.ForEachPartition(ctx, 50, func(context.Context, Partition) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
