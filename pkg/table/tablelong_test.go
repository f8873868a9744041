package table

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/beandb/pkg/lock"
	"github.com/cuemby/beandb/pkg/record"
	"github.com/cuemby/beandb/pkg/storage"
)

func newTestTableLong(t *testing.T) *TableLong[*record.Pair] {
	t.Helper()
	a := storage.NewBoltAdapter()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, a.Open(path, storage.Options{}))
	t.Cleanup(func() { a.Close() })

	locks := lock.NewPool(16)
	tl, err := NewLong[*record.Pair](2, "counters", a, locks, 0x1234, &record.Pair{}, 64)
	require.NoError(t, err)
	return tl
}

func TestIDCounterUnsetReadsZero(t *testing.T) {
	tl := newTestTableLong(t)
	v, ok, err := tl.GetIDCounter()
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int64(0), v)
}

func TestSetAndGetIDCounterSurvivesKeyLayout(t *testing.T) {
	tl := newTestTableLong(t)
	holder := "proc-1"
	tl.locks.Acquire(tl.CounterLockID(), holder)
	defer tl.locks.Release(tl.CounterLockID(), holder)

	require.NoError(t, tl.SetIDCounter(holder, 1000))

	v, ok, err := tl.GetIDCounter()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1000), v)

	key := tl.counterKey(1000)
	require.Equal(t, byte(0xF1), key[0])
}

func TestSetIDCounterReplacesPriorValue(t *testing.T) {
	tl := newTestTableLong(t)
	holder := "proc-1"
	tl.locks.Acquire(tl.CounterLockID(), holder)
	defer tl.locks.Release(tl.CounterLockID(), holder)

	require.NoError(t, tl.SetIDCounter(holder, 5))
	require.NoError(t, tl.SetIDCounter(holder, 9))

	v, ok, err := tl.GetIDCounter()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(9), v)

	// Only one counter key should remain for this table.
	it, err := tl.store.Iter(storage.IterGreaterOrEqual, tl.counterPrefix())
	require.NoError(t, err)
	defer it.Close()
	n := 0
	for it.Valid() {
		n++
		it.Next()
	}
	require.Equal(t, 1, n)
}

func TestNextIDStartsAtOne(t *testing.T) {
	tl := newTestTableLong(t)
	holder := "proc-1"
	tl.locks.Acquire(tl.CounterLockID(), holder)
	defer tl.locks.Release(tl.CounterLockID(), holder)

	id, err := tl.NextID(holder)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	id, err = tl.NextID(holder)
	require.NoError(t, err)
	require.Equal(t, int64(2), id)
}

func TestSetIDCounterRequiresLock(t *testing.T) {
	tl := newTestTableLong(t)
	err := tl.SetIDCounter("unheld", 1)
	require.Error(t, err)
}
