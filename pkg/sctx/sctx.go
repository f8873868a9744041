/*
Package sctx implements the SafeContext: the per-procedure undo journal and
record-identity map a procedure carries on its thread context (spec §4.D).

A SafeContext accumulates on_commit and on_rollback callbacks as the
procedure's safe wrappers are mutated, plus an identity map so that every
Wrap call for the same (table,key) within one procedure returns the same
*Wrapper instance — mutating through any alias is visible to the others.
Commit runs on_commit callbacks in order and clears the journal; Rollback
runs on_rollback callbacks in LIFO order, undoing every mutation made
through a wrapper, then clears the journal.
*/
package sctx

import (
	"sync"

	"github.com/cuemby/beandb/pkg/log"
)

// recordKey identifies a (table,key) pair in the identity map. key is
// boxed as any; it is comparable because every Table key type K is
// constrained comparable.
type recordKey struct {
	tableID uint32
	key     any
}

// SafeContext is a single procedure execution's undo journal. It is not
// safe for concurrent use by more than one goroutine: a procedure runs on
// exactly one worker thread at a time (spec §4.E).
type SafeContext struct {
	mu         sync.Mutex
	onCommit   []func() error
	onRollback []func()
	records    map[recordKey]any
	dirty      bool
}

// New returns an empty SafeContext, ready for one procedure execution.
func New() *SafeContext {
	return &SafeContext{records: make(map[recordKey]any)}
}

// AddOnCommit enqueues a callback that runs only if the procedure commits
// successfully, in enqueue order. A returned error is logged, not rolled
// back: by the time on_commit runs, the commit has already published.
func (sc *SafeContext) AddOnCommit(fn func() error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.onCommit = append(sc.onCommit, fn)
}

// AddOnRollback enqueues an undo callback. Rollback runs these in reverse
// (LIFO) order.
func (sc *SafeContext) AddOnRollback(fn func()) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.onRollback = append(sc.onRollback, fn)
}

// Dirty reports whether any wrapped record has been mutated this
// transaction.
func (sc *SafeContext) Dirty() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.dirty
}

// MarkDirty sets the dirty flag. Called by Wrapper.Touch on a record's
// first mutation.
func (sc *SafeContext) MarkDirty() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.dirty = true
}

// lookup returns the wrapper registered for rk, if any.
func (sc *SafeContext) lookup(rk recordKey) (any, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	w, ok := sc.records[rk]
	return w, ok
}

func (sc *SafeContext) register(rk recordKey, w any) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.records[rk] = w
}

// Commit runs on_commit callbacks in enqueue order and clears the
// journal. Errors from individual callbacks are logged and otherwise
// ignored — the procedure's mutations are already durable-bound by the
// time on_commit fires.
func (sc *SafeContext) Commit() {
	sc.mu.Lock()
	callbacks := sc.onCommit
	sc.mu.Unlock()

	for _, fn := range callbacks {
		if err := fn(); err != nil {
			log.Errorf("on_commit callback failed", err)
		}
	}
	sc.Clear()
}

// Rollback runs on_rollback callbacks in reverse (LIFO) order, then
// clears the journal. After Rollback, Dirty() is false and nothing in
// this transaction remains attributable in any table's modified map.
func (sc *SafeContext) Rollback() {
	sc.mu.Lock()
	callbacks := sc.onRollback
	sc.mu.Unlock()

	for i := len(callbacks) - 1; i >= 0; i-- {
		callbacks[i]()
	}
	sc.Clear()
}

// Clear resets the journal and identity map for reuse by a redo or a
// freshly dispatched procedure. Called automatically by Commit/Rollback.
func (sc *SafeContext) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.onCommit = nil
	sc.onRollback = nil
	sc.records = make(map[recordKey]any)
	sc.dirty = false
}
