/*
Package procedure implements the procedure runtime: the execution unit
that acquires record locks in a fixed order, runs application logic
against a SafeContext, and either commits or rolls back (spec §4.E).

A Procedure wraps a Fn. Each call to Execute runs the function to
completion (commit), to a redo signal (rollback, then retry up to a
budget), to an undo signal (rollback, no retry), or to an unexpected error
(rollback, on_exception, failure). redo()/undo()/check() are expressed as
panics carrying a beanerr sentinel, caught by the run loop in runOnce —
mirroring the exception-based signaling the design describes, since a
deeply nested helper needs to unwind to the run loop without every caller
in between checking an error return.
*/
package procedure

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/cuemby/beandb/pkg/beanerr"
	"github.com/cuemby/beandb/pkg/lock"
	"github.com/cuemby/beandb/pkg/metrics"
)

// State is a Procedure's position in its execution state machine.
type State int32

const (
	StateInit State = iota
	StateExecuting
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateExecuting:
		return "EXECUTING"
	case StateCommitted:
		return "COMMITTED"
	case StateRolledBack:
		return "ROLLED_BACK"
	default:
		return "UNKNOWN"
	}
}

// Fn is the application logic a Procedure runs. It receives the
// ThreadContext for this attempt (fresh on every redo) and returns nil to
// commit or an error to roll back. Use Redo/Undo/Check from within Fn to
// signal retry or abandonment.
type Fn func(tc *ThreadContext) error

// Procedure is a runnable unit of work with session ordering, retry and
// rollback semantics. Construct with New; Execute is non-reentrant on a
// given instance (CAS-guarded), matching the one-execute-call lifecycle
// spec §3 describes.
type Procedure struct {
	Sid         string
	OnException func(error)

	fn    Fn
	state int32 // atomic State

	beginTime           atomic.Value // time.Time
	interruptible       int32        // atomic bool, 1 = interruptible (default)
	interruptRequested  int32        // atomic bool, set by Watchdog.scan
}

// New builds a Procedure running fn, optionally under session id sid
// (empty string for unordered submission).
func New(sid string, fn Fn) *Procedure {
	p := &Procedure{Sid: sid, fn: fn}
	p.interruptible = 1
	return p
}

// State returns the procedure's current state.
func (p *Procedure) State() State {
	return State(atomic.LoadInt32(&p.state))
}

// BeginTime returns when the current (or most recent) execution attempt
// started, for the watchdog's timeout scan.
func (p *Procedure) BeginTime() time.Time {
	if v := p.beginTime.Load(); v != nil {
		return v.(time.Time)
	}
	return time.Time{}
}

// Interruptible reports whether the watchdog may interrupt this
// procedure's current attempt.
func (p *Procedure) Interruptible() bool {
	return atomic.LoadInt32(&p.interruptible) == 1
}

// DisableInterrupt marks the procedure non-interruptible for its current
// attempt, the Go equivalent of the design's begin_time = +infinity
// escape hatch for procedures that must legitimately run long.
func (p *Procedure) DisableInterrupt() {
	atomic.StoreInt32(&p.interruptible, 0)
}

// EnableInterrupt reverses DisableInterrupt.
func (p *Procedure) EnableInterrupt() {
	atomic.StoreInt32(&p.interruptible, 1)
}

// checkInterrupt reports and clears a pending watchdog interruption
// request.
func (p *Procedure) checkInterrupt() bool {
	return atomic.CompareAndSwapInt32(&p.interruptRequested, 1, 0)
}

// Runtime bundles what Execute needs from the surrounding DBManager: the
// record lock pool and the checkpoint pipeline's shared/exclusive commit
// gate.
type Runtime struct {
	Locks       *lock.Pool
	Gate        *CommitGate
	MaxRedo     int
	WatchdogReg *Watchdog // optional; nil disables interruption

	// MaxLocksPerProcedure caps the ids a single ThreadContext.Lock call
	// may request; 0 means unlimited.
	MaxLocksPerProcedure int
}

// Execute runs the procedure to completion: acquire the commit gate's
// shared side, run Fn (retrying on redo up to rt.MaxRedo), commit or roll
// back, release the gate. Returns beanerr.ErrRedoExhausted,
// beanerr.ErrInterrupted, or the Fn's own non-sentinel error on failure.
func (p *Procedure) Execute(rt *Runtime) error {
	if !atomic.CompareAndSwapInt32(&p.state, int32(StateInit), int32(StateExecuting)) {
		return errors.New("beandb: procedure is not reentrant")
	}

	rt.Gate.RLock()
	defer rt.Gate.RUnlock()

	if rt.WatchdogReg != nil {
		rt.WatchdogReg.register(p)
		defer rt.WatchdogReg.unregister(p)
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ProcedureDuration)

	redoCount := 0
	for {
		tc := newThreadContext(p, rt.Locks, rt.MaxLocksPerProcedure)
		p.beginTime.Store(time.Now())
		err := p.runOnce(tc)

		switch {
		case err == nil:
			tc.sc.Commit()
			tc.releaseAll()
			atomic.StoreInt32(&p.state, int32(StateCommitted))
			return nil

		case errors.Is(err, beanerr.ErrRedo):
			tc.sc.Rollback()
			tc.releaseAll()
			metrics.ProcedureRedoTotal.Inc()
			redoCount++
			if redoCount > rt.MaxRedo {
				atomic.StoreInt32(&p.state, int32(StateRolledBack))
				return beanerr.ErrRedoExhausted
			}
			continue

		case errors.Is(err, beanerr.ErrUndo):
			tc.sc.Rollback()
			tc.releaseAll()
			atomic.StoreInt32(&p.state, int32(StateRolledBack))
			return nil

		case errors.Is(err, beanerr.ErrInterrupted):
			tc.sc.Rollback()
			tc.releaseAll()
			metrics.ProcedureInterruptedTotal.Inc()
			atomic.StoreInt32(&p.state, int32(StateRolledBack))
			return err

		default:
			tc.sc.Rollback()
			tc.releaseAll()
			if p.OnException != nil {
				p.OnException(err)
			}
			atomic.StoreInt32(&p.state, int32(StateRolledBack))
			return err
		}
	}
}

// runOnce invokes fn, converting a Redo/Undo/Check panic into its
// corresponding sentinel error.
func (p *Procedure) runOnce(tc *ThreadContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	return p.fn(tc)
}

// Redo signals the run loop to roll back and retry, up to the procedure's
// redo budget.
func Redo() {
	panic(beanerr.ErrRedo)
}

// Undo signals the run loop to roll back without retrying.
func Undo() {
	panic(beanerr.ErrUndo)
}

// Check panics with Redo unless a and b compare equal; shorthand for the
// common "re-verify an assumption, retry if stale" pattern.
func Check(a, b any) {
	if a != b {
		Redo()
	}
}
