package sctx

import (
	"github.com/cuemby/beandb/pkg/codec"
	"github.com/cuemby/beandb/pkg/record"
)

// Store is the narrow surface Wrapper needs from a table: promote a
// SHARED record to DIRTY exactly once, and undo that promotion. A
// standalone interface (rather than importing pkg/table's concrete Table
// type) keeps pkg/sctx free of a dependency on pkg/table, so either
// package can be tested or reused in isolation.
type Store[K comparable, V record.Bean] interface {
	Modify(holder any, k K, v V) error

	// WasDirty reports whether k already had a modified-map entry at the
	// moment of the call — i.e. whether some earlier, already-committed
	// transaction left it pending flush, as opposed to this transaction
	// being the one that is about to dirty it.
	WasDirty(k K) bool
	// DemoteToShared removes k's modified-map entry and restores v (the
	// same instance just unmarshaled back to its pre-transaction bytes)
	// to SHARED in the read cache. Touch's rollback calls this only when
	// WasDirty reported false, so a transaction that merely continues an
	// already-pending dirty record leaves it dirty for the next
	// checkpoint instead of demoting someone else's pending write.
	DemoteToShared(k K, v V)
}

// MutateStore extends Store with the fresh-insert/tombstone operations
// Put and Remove need, plus an opaque snapshot/restore pair that lets an
// undo put a key back to its exact pre-call state without pkg/sctx
// needing to know the table's internal representation of "state."
type MutateStore[K comparable, V record.Bean] interface {
	Store[K, V]
	Put(holder any, k K, v V) error
	Remove(holder any, k K) error

	// SnapshotKey captures k's current modified-map/read-cache state as
	// an opaque token, to be handed back to RestoreKey verbatim.
	SnapshotKey(k K) any
	// RestoreKey reinstates k to a previously captured SnapshotKey
	// result.
	RestoreKey(k K, snapshot any)
}

// Wrapper identity-maps one (table,key) pair within a single procedure's
// SafeContext. Every Wrap call for the same pair returns this same
// instance; mutating the underlying record through any alias is visible
// to the others, satisfying the identity-within-transaction invariant
// (spec §8, property 2).
type Wrapper[K comparable, V record.Bean] struct {
	sc      *SafeContext
	store   Store[K, V]
	tableID uint32
	key     K
	value   V
	touched bool
}

// Wrap returns the wrapper for (tableID,k) within sc, constructing it on
// first access and reusing it thereafter.
func Wrap[K comparable, V record.Bean](sc *SafeContext, store Store[K, V], tableID uint32, k K, v V) *Wrapper[K, V] {
	rk := recordKey{tableID: tableID, key: k}
	if existing, ok := sc.lookup(rk); ok {
		return existing.(*Wrapper[K, V])
	}
	w := &Wrapper[K, V]{sc: sc, store: store, tableID: tableID, key: k, value: v}
	sc.register(rk, w)
	return w
}

// Value returns the wrapped record. Callers type-assert to the concrete
// Bean type to read or, after Touch, mutate its fields directly.
func (w *Wrapper[K, V]) Value() V { return w.value }

// Touch promotes the wrapped record to DIRTY, exactly once per
// transaction: on the first call it snapshots the record's current
// encoded state, registers an on_rollback callback that restores those
// bytes into the same instance (a whole-value undo rather than per-field
// undo records — see DESIGN.md), marks the SafeContext dirty, and calls
// Store.Modify(holder,k,v) exactly once. Subsequent calls for the same
// wrapper are no-ops. Callers mutate the record's fields only after
// calling Touch.
func (w *Wrapper[K, V]) Touch(holder any) error {
	if w.touched {
		return nil
	}
	wasDirtyBefore := w.store.WasDirty(w.key)
	snapshot := record.MarshalValue(w.value)
	value := w.value
	store := w.store
	key := w.key
	w.sc.AddOnRollback(func() {
		o := codec.Wrap(snapshot)
		if _, err := o.UnmarshalByte(); err != nil {
			return
		}
		_ = value.Unmarshal(o)
		if !wasDirtyBefore {
			// This transaction is the one that promoted key to DIRTY;
			// undoing it must also clear that entry from the modified
			// map, not just restore the bytes in place (spec §4.D, §8
			// property 3).
			store.DemoteToShared(key, value)
		}
	})

	if err := w.store.Modify(holder, w.key, w.value); err != nil {
		return err
	}
	w.touched = true
	w.sc.MarkDirty()
	return nil
}

// Put installs v as k's fresh value in tableID (via store.Put) and
// registers an on_rollback callback that restores k to its exact
// pre-call state — the prior record, dirty or clean, or bare absence —
// satisfying spec §4.D's "put(k,v) registers an undo that restores the
// prior state (either the prior record or absence)."
func Put[K comparable, V record.Bean](sc *SafeContext, store MutateStore[K, V], holder any, k K, v V) error {
	snapshot := store.SnapshotKey(k)
	if err := store.Put(holder, k, v); err != nil {
		return err
	}
	sc.AddOnRollback(func() {
		store.RestoreKey(k, snapshot)
	})
	sc.MarkDirty()
	return nil
}

// Remove tombstones k (via store.Remove) and registers an on_rollback
// callback that reinstalls the prior record — spec §4.D: "remove(k)
// registers an undo that reinstalls the prior record."
func Remove[K comparable, V record.Bean](sc *SafeContext, store MutateStore[K, V], holder any, k K) error {
	snapshot := store.SnapshotKey(k)
	if err := store.Remove(holder, k); err != nil {
		return err
	}
	sc.AddOnRollback(func() {
		store.RestoreKey(k, snapshot)
	})
	sc.MarkDirty()
	return nil
}
