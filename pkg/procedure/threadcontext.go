package procedure

import (
	"github.com/cuemby/beandb/pkg/beanerr"
	"github.com/cuemby/beandb/pkg/lock"
	"github.com/cuemby/beandb/pkg/sctx"
)

// ThreadContext is the per-execution-attempt state a procedure carries:
// its currently held lock ids, the lock pool they come from, and its
// SafeContext. A fresh ThreadContext is built for every redo attempt —
// locks and the undo journal from a rolled-back attempt never leak into
// the next one.
//
// The design calls this a per-worker-thread structure; this runtime
// instead scopes it to one execution attempt, since Go procedures run on
// goroutines rather than dedicated OS threads and nothing here depends on
// thread-local state.
type ThreadContext struct {
	owner    *Procedure
	pool     *lock.Pool
	sc       *sctx.SafeContext
	held     []uint64
	maxLocks int // 0 = unlimited
}

func newThreadContext(owner *Procedure, pool *lock.Pool, maxLocks int) *ThreadContext {
	return &ThreadContext{owner: owner, pool: pool, sc: sctx.New(), maxLocks: maxLocks}
}

// SContext returns the attempt's SafeContext, for sctx.Wrap calls.
func (tc *ThreadContext) SContext() *sctx.SafeContext { return tc.sc }

// Holder is this attempt's lock-holder identity: the owning Procedure
// pointer, stable for the lifetime of one Execute call (across redos a
// new ThreadContext is built, but the holder identity is the same
// Procedure, so a fast path that still holds a lock from a prior attempt
// would be reentrant rather than blocking — Lock always releases first to
// avoid relying on that).
func (tc *ThreadContext) Holder() any { return tc.owner }

// Lock releases every lock currently held by this attempt, then
// reacquires ids in ascending shard-index order — the lock-ordering
// discipline that prevents deadlock between procedures that both sort
// (spec §4.E, §9).
func (tc *ThreadContext) Lock(ids ...uint64) {
	if tc.owner.checkInterrupt() {
		panic(beanerr.ErrInterrupted)
	}
	if tc.maxLocks > 0 && len(ids) > tc.maxLocks {
		panic(beanerr.ErrTooManyLocks)
	}
	if len(tc.held) > 0 {
		tc.pool.ReleaseAll(tc.held, tc.Holder())
	}
	tc.pool.AcquireSorted(ids, tc.Holder())
	tc.held = ids
}

// releaseAll releases every lock still held by this attempt, called once
// by Execute on commit, rollback, or failure.
func (tc *ThreadContext) releaseAll() {
	if len(tc.held) == 0 {
		return
	}
	tc.pool.ReleaseAll(tc.held, tc.Holder())
	tc.held = nil
}
