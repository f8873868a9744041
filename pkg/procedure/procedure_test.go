package procedure

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/beandb/pkg/beanerr"
	"github.com/cuemby/beandb/pkg/lock"
)

func newTestRuntime(maxRedo int) *Runtime {
	return &Runtime{
		Locks:   lock.NewPool(16),
		Gate:    NewCommitGate(),
		MaxRedo: maxRedo,
	}
}

func TestExecuteCommitsOnSuccess(t *testing.T) {
	rt := newTestRuntime(3)
	ran := false
	p := New("", func(tc *ThreadContext) error {
		ran = true
		return nil
	})
	require.NoError(t, p.Execute(rt))
	require.True(t, ran)
	require.Equal(t, StateCommitted, p.State())
}

func TestExecuteRollsBackOnError(t *testing.T) {
	rt := newTestRuntime(3)
	sentinel := errors.New("boom")
	p := New("", func(tc *ThreadContext) error {
		return sentinel
	})
	err := p.Execute(rt)
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, StateRolledBack, p.State())
}

func TestExecuteOnExceptionCalledOnFailure(t *testing.T) {
	rt := newTestRuntime(3)
	var caught error
	p := New("", func(tc *ThreadContext) error {
		return errors.New("boom")
	})
	p.OnException = func(err error) { caught = err }
	_ = p.Execute(rt)
	require.Error(t, caught)
}

func TestExecuteRedoRetriesThenCommits(t *testing.T) {
	rt := newTestRuntime(3)
	attempts := 0
	p := New("", func(tc *ThreadContext) error {
		attempts++
		if attempts < 3 {
			Redo()
		}
		return nil
	})
	require.NoError(t, p.Execute(rt))
	require.Equal(t, 3, attempts)
	require.Equal(t, StateCommitted, p.State())
}

func TestExecuteRedoExhaustedFails(t *testing.T) {
	rt := newTestRuntime(2)
	p := New("", func(tc *ThreadContext) error {
		Redo()
		return nil
	})
	err := p.Execute(rt)
	require.ErrorIs(t, err, beanerr.ErrRedoExhausted)
	require.Equal(t, StateRolledBack, p.State())
}

func TestExecuteUndoRollsBackWithoutRetry(t *testing.T) {
	rt := newTestRuntime(5)
	attempts := 0
	p := New("", func(tc *ThreadContext) error {
		attempts++
		Undo()
		return nil
	})
	err := p.Execute(rt)
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
	require.Equal(t, StateRolledBack, p.State())
}

func TestCheckRedoesOnMismatch(t *testing.T) {
	rt := newTestRuntime(3)
	attempts := 0
	p := New("", func(tc *ThreadContext) error {
		attempts++
		Check(attempts, 2)
		return nil
	})
	require.NoError(t, p.Execute(rt))
	require.Equal(t, 2, attempts)
}

func TestExecuteNotReentrant(t *testing.T) {
	rt := newTestRuntime(3)
	p := New("", func(tc *ThreadContext) error { return nil })
	require.NoError(t, p.Execute(rt))
	err := p.Execute(rt)
	require.Error(t, err)
}

func TestLockAcquiresAscendingAndReleasesPrior(t *testing.T) {
	rt := newTestRuntime(3)
	p := New("", func(tc *ThreadContext) error {
		tc.Lock(5, 1, 3)
		require.True(t, rt.Locks.Holds(1, tc.Holder()))
		require.True(t, rt.Locks.Holds(3, tc.Holder()))
		require.True(t, rt.Locks.Holds(5, tc.Holder()))

		tc.Lock(9)
		require.False(t, rt.Locks.Holds(1, tc.Holder()), "Lock must release previously held ids")
		require.True(t, rt.Locks.Holds(9, tc.Holder()))
		return nil
	})
	require.NoError(t, p.Execute(rt))
}

func TestLockRejectsTooManyIds(t *testing.T) {
	rt := newTestRuntime(3)
	rt.MaxLocksPerProcedure = 2
	p := New("", func(tc *ThreadContext) error {
		tc.Lock(1, 2, 3)
		return nil
	})
	err := p.Execute(rt)
	require.ErrorIs(t, err, beanerr.ErrTooManyLocks)
	require.Equal(t, StateRolledBack, p.State())
}

func TestWatchdogInterruptsLongRunningProcedure(t *testing.T) {
	wd := NewWatchdog(20*time.Millisecond, 5*time.Millisecond)
	wd.Start()
	defer wd.Stop()

	rt := newTestRuntime(3)
	rt.WatchdogReg = wd

	release := make(chan struct{})
	result := make(chan error, 1)
	p := New("", func(tc *ThreadContext) error {
		<-release
		// this Lock call observes the pending interrupt request.
		tc.Lock(1)
		return nil
	})
	go func() { result <- p.Execute(rt) }()

	time.Sleep(60 * time.Millisecond)
	close(release)

	select {
	case err := <-result:
		require.ErrorIs(t, err, beanerr.ErrInterrupted)
	case <-time.After(2 * time.Second):
		t.Fatal("procedure did not observe interruption in time")
	}
}

func TestDisableInterruptPreventsWatchdog(t *testing.T) {
	wd := NewWatchdog(10*time.Millisecond, 5*time.Millisecond)
	wd.Start()
	defer wd.Stop()

	rt := newTestRuntime(3)
	rt.WatchdogReg = wd

	p := New("", func(tc *ThreadContext) error {
		tc.owner.DisableInterrupt()
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	require.NoError(t, p.Execute(rt))
}
