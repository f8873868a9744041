package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/beandb/pkg/lock"
	"github.com/cuemby/beandb/pkg/procedure"
	"github.com/cuemby/beandb/pkg/record"
	"github.com/cuemby/beandb/pkg/storage"
	"github.com/cuemby/beandb/pkg/table"
)

func newTestFixture(t *testing.T) (*Checkpoint, *table.Table[int64, *record.Pair], *lock.Pool, *storage.BoltAdapter) {
	t.Helper()
	a := storage.NewBoltAdapter()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, a.Open(path, storage.Options{}))
	t.Cleanup(func() { a.Close() })

	locks := lock.NewPool(16)
	tbl, err := table.New[int64, *record.Pair](1, "pairs", a, locks, 0xABCD, table.Int64KeyCodec{}, &record.Pair{}, 64)
	require.NoError(t, err)

	gate := procedure.NewCommitGate()
	cfg := Config{
		CommitPeriod:     time.Hour,
		CommitModCount:   1 << 30,
		ResaveCount:      1 << 30,
		BackupPeriod:     time.Hour,
		FullBackupPeriod: time.Hour,
		BackupBase:       time.Unix(0, 0),
		BackupPath:       t.TempDir(),
		DBName:           "test",
	}
	cp := New(a, gate, cfg, nil)
	cp.Register(tbl)
	return cp, tbl, locks, a
}

func TestRunFullDrainsModifiedMap(t *testing.T) {
	cp, tbl, locks, _ := newTestFixture(t)
	holder := "writer"
	id := tbl.LockID(7)
	locks.Acquire(id, holder)
	require.NoError(t, tbl.Put(holder, 7, &record.Pair{Value1: 3, Value2: 8}))
	locks.Release(id, holder)

	require.Equal(t, 1, tbl.DirtyCount())
	require.NoError(t, cp.RunFull(time.Now()))
	require.Equal(t, 0, tbl.DirtyCount())
}

func TestRunFullPersistsAcrossFreshTableInstance(t *testing.T) {
	cp, tbl, locks, store := newTestFixture(t)
	holder := "writer"
	id := tbl.LockID(7)
	locks.Acquire(id, holder)
	require.NoError(t, tbl.Put(holder, 7, &record.Pair{Value1: 3, Value2: 8}))
	locks.Release(id, holder)
	require.NoError(t, cp.RunFull(time.Now()))

	fresh, err := table.New[int64, *record.Pair](1, "pairs", store, locks, 0xABCD, table.Int64KeyCodec{}, &record.Pair{}, 64)
	require.NoError(t, err)
	locks.Acquire(fresh.LockID(7), "reader")
	v, ok, err := fresh.Get("reader", 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(3), v.Value1)
}

func TestRunFullSkipsEntriesHeldByAnotherHolder(t *testing.T) {
	cp, tbl, locks, _ := newTestFixture(t)
	holder := "writer"
	id := tbl.LockID(7)
	locks.Acquire(id, holder)
	require.NoError(t, tbl.Put(holder, 7, &record.Pair{Value1: 1, Value2: 2}))

	// Phase A/B's try-lock pass must skip this entry since "writer" still
	// holds the lock; Phase C's unconditional save_modified drains it
	// regardless, so the checkpoint still completes with zero residual
	// dirty entries.
	require.NoError(t, cp.RunFull(time.Now()))
	require.Equal(t, 0, tbl.DirtyCount())
	locks.Release(id, holder)
}

func TestCheckpointGateExcludesInFlightProcedures(t *testing.T) {
	cp, _, _, _ := newTestFixture(t)

	cp.gate.RLock()
	done := make(chan struct{})
	go func() {
		require.NoError(t, cp.RunFull(time.Now()))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("RunFull must wait for in-flight shared holders to release")
	case <-time.After(30 * time.Millisecond):
	}
	cp.gate.RUnlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunFull never completed after the shared holder released")
	}
}

func TestBackupNextCheckpointForcesBackupRegardlessOfPeriod(t *testing.T) {
	cp, _, _, _ := newTestFixture(t)
	cp.BackupNextCheckpoint()
	require.NoError(t, cp.RunFull(time.Now()))
	require.False(t, cp.backupRequested)
	require.WithinDuration(t, time.Now(), cp.lastBackup, time.Second)
}

func TestBackupTimestampTagQuantizesToFullBackupPeriod(t *testing.T) {
	cp, _, _, _ := newTestFixture(t)
	cp.cfg.BackupBase = time.Unix(0, 0)
	cp.cfg.FullBackupPeriod = time.Hour

	now := time.Unix(0, 0).Add(90 * time.Minute)
	tag := cp.backupTimestampTag(now)
	expected := time.Unix(0, 0).Add(time.Hour).Format("20060102T150405")
	require.Equal(t, expected, tag)
}

func TestTickSkipsWhenNeitherThresholdMet(t *testing.T) {
	cp, tbl, locks, _ := newTestFixture(t)
	holder := "writer"
	id := tbl.LockID(7)
	locks.Acquire(id, holder)
	require.NoError(t, tbl.Put(holder, 7, &record.Pair{Value1: 1, Value2: 2}))
	locks.Release(id, holder)

	cp.tick(time.Now())
	require.Equal(t, 1, tbl.DirtyCount(), "tick must not run a full commit before either threshold is met")
}

func TestTickRunsWhenModCountThresholdMet(t *testing.T) {
	cp, tbl, locks, _ := newTestFixture(t)
	cp.cfg.CommitModCount = 1
	holder := "writer"
	id := tbl.LockID(7)
	locks.Acquire(id, holder)
	require.NoError(t, tbl.Put(holder, 7, &record.Pair{Value1: 1, Value2: 2}))
	locks.Release(id, holder)

	cp.tick(time.Now())
	require.Equal(t, 0, tbl.DirtyCount())
}

func TestPhaseGSweeperInvoked(t *testing.T) {
	cp, _, _, _ := newTestFixture(t)
	swept := false
	cp.Sweeper = func() { swept = true }
	require.NoError(t, cp.RunFull(time.Now()))
	require.True(t, swept)
}
