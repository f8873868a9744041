/*
Package table implements the typed, cached key-value abstraction layered
over pkg/storage: Table[K,V] for arbitrary comparable key types and
TableLong[V] as the int64-keyed specialization that additionally exposes a
persisted id counter.

A Table holds at most one live instance per key across its read cache and
its modified map: read_cache is a bounded LRU of SHARED (clean) records;
modified_map is an unbounded map of DIRTY records and tombstones awaiting
the next checkpoint flush. Every method that reads or writes a specific key
takes the record lock id's current holder explicitly, mirroring how
pkg/lock threads caller identity instead of relying on goroutine-local
state.
*/
package table

import (
	"bytes"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cuemby/beandb/pkg/beanerr"
	"github.com/cuemby/beandb/pkg/codec"
	"github.com/cuemby/beandb/pkg/lock"
	"github.com/cuemby/beandb/pkg/record"
	"github.com/cuemby/beandb/pkg/storage"
)

// modEntry is a modified_map slot: either a DIRTY record or a tombstone
// marking a pending delete.
type modEntry[V record.Bean] struct {
	value     V
	tombstone bool
}

// FlushCounts accumulates diagnostics across a checkpoint flush pass.
type FlushCounts struct {
	Saved   int
	Skipped int
}

// Range bounds a Walk scan. A nil Lo/Hi means unbounded in that direction.
type Range[K comparable] struct {
	Lo, Hi                   *K
	InclusiveLo, InclusiveHi bool
}

// Table is the typed cached KV abstraction for key type K and record type
// V. Instances are created by pkg/dbmanager's open_table administrative
// operation, never directly by application code.
type Table[K comparable, V record.Bean] struct {
	id    uint32
	name  string
	store storage.Storage
	locks *lock.Pool
	salt  uint64
	kc    KeyCodec[K]
	stub  V

	readCache *lru.Cache
	modified  sync.Map // K -> modEntry[V]
}

// New builds a Table. cacheSize is the read cache's LRU capacity.
func New[K comparable, V record.Bean](id uint32, name string, store storage.Storage, locks *lock.Pool, salt uint64, kc KeyCodec[K], stub V, cacheSize int) (*Table[K, V], error) {
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Table[K, V]{
		id:        id,
		name:      name,
		store:     store,
		locks:     locks,
		salt:      salt,
		kc:        kc,
		stub:      stub,
		readCache: c,
	}, nil
}

// Name returns the table's administrative name.
func (t *Table[K, V]) Name() string { return t.name }

// ID returns the table's numeric id, the Storage key prefix.
func (t *Table[K, V]) ID() uint32 { return t.id }

// LockID derives the table-salted lock id for k, per the pool's
// table_salt XOR hash(key) scheme.
func (t *Table[K, V]) LockID(k K) uint64 {
	o := codec.NewOctets()
	t.kc.Encode(o, k)
	return lock.ID(t.salt, lock.Hash64(o.Bytes()))
}

func (t *Table[K, V]) storageKey(k K) []byte {
	return encodeStorageKey(t.id, t.kc, k)
}

func (t *Table[K, V]) setState(v V, s record.SaveState) {
	if h, ok := any(v).(record.SaveStateHolder); ok {
		h.SetState(s)
	}
}

// Get reads k, promoting it from Storage into the read cache on a miss.
// The caller must hold k's record lock (LockViolation otherwise).
func (t *Table[K, V]) Get(holder any, k K) (V, bool, error) {
	return t.get(holder, k, true, true)
}

// GetNoLock is Get without the held-lock check, for call sites that are
// known safe (e.g. the checkpoint pipeline under quiesce).
func (t *Table[K, V]) GetNoLock(k K) (V, bool, error) {
	return t.get(nil, k, false, true)
}

// GetNoCache is Get without admitting the result into the read cache.
func (t *Table[K, V]) GetNoCache(holder any, k K) (V, bool, error) {
	return t.get(holder, k, true, false)
}

func (t *Table[K, V]) get(holder any, k K, checkLock bool, useCache bool) (V, bool, error) {
	var zero V
	if checkLock && !t.locks.Holds(t.LockID(k), holder) {
		return zero, false, beanerr.ErrLockViolation
	}

	if raw, ok := t.modified.Load(k); ok {
		entry := raw.(modEntry[V])
		if entry.tombstone {
			return zero, false, nil
		}
		return entry.value, true, nil
	}

	if useCache {
		if cached, ok := t.readCache.Get(k); ok {
			return cached.(V), true, nil
		}
	}

	raw, ok, err := t.store.Get(t.storageKey(k))
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	v, err := record.UnmarshalValue(t.stub, raw)
	if err != nil {
		return zero, false, err
	}
	typed := v.(V)
	if useCache {
		t.setState(typed, record.SHARED)
		t.readCache.Add(k, typed)
	}
	return typed, true, nil
}

// Put installs a fresh (UNMANAGED) record as k's value: it becomes DIRTY
// in the modified map and is admitted into the read cache under the same
// instance, preserving the one-live-instance invariant.
func (t *Table[K, V]) Put(holder any, k K, v V) error {
	if !t.locks.Holds(t.LockID(k), holder) {
		return beanerr.ErrLockViolation
	}
	if h, ok := any(v).(record.SaveStateHolder); ok && h.State() != record.UNMANAGED {
		return beanerr.ErrStateViolation
	}
	t.setState(v, record.DIRTY)
	t.modified.Store(k, modEntry[V]{value: v})
	t.readCache.Add(k, v)
	return nil
}

// Remove installs a tombstone for k and evicts any cached instance.
func (t *Table[K, V]) Remove(holder any, k K) error {
	if !t.locks.Holds(t.LockID(k), holder) {
		return beanerr.ErrLockViolation
	}
	var zero V
	t.modified.Store(k, modEntry[V]{value: zero, tombstone: true})
	t.readCache.Remove(k)
	return nil
}

// Modify transitions a cached instance from SHARED to DIRTY. v must be the
// table's own canonical cached pointer for k (as returned by a prior Get),
// not a fresh or cloned value.
func (t *Table[K, V]) Modify(holder any, k K, v V) error {
	if !t.locks.Holds(t.LockID(k), holder) {
		return beanerr.ErrLockViolation
	}
	if raw, ok := t.modified.Load(k); ok {
		entry := raw.(modEntry[V])
		if !entry.tombstone && any(entry.value) == any(v) {
			return nil // already dirty under the same instance
		}
		return beanerr.ErrStateViolation
	}
	if cached, ok := t.readCache.Get(k); ok {
		if any(cached.(V)) != any(v) {
			return beanerr.ErrStateViolation
		}
	}
	t.setState(v, record.DIRTY)
	t.modified.Store(k, modEntry[V]{value: v})
	return nil
}

// WasDirty reports whether k already has a modified-map entry, for
// pkg/sctx.Wrapper.Touch to decide whether its Modify call is the one
// dirtying k for the first time this round, or whether k was already
// pending flush from an earlier, already-committed transaction.
func (t *Table[K, V]) WasDirty(k K) bool {
	_, ok := t.modified.Load(k)
	return ok
}

// DemoteToShared removes k's modified-map entry and restores v to SHARED
// in the read cache — the undo counterpart of the DIRTY promotion Modify
// performs, called by pkg/sctx only when this transaction was the one
// that first dirtied k (spec §4.D, §8 property 3: "after undo ... the
// modified_map must not contain entries attributable to this
// transaction").
func (t *Table[K, V]) DemoteToShared(k K, v V) {
	t.modified.Delete(k)
	t.setState(v, record.SHARED)
	t.readCache.Add(k, v)
}

// keySnapshot captures k's modified-map/read-cache state at a point in
// time, opaque to pkg/sctx, so a later RestoreKey call can put k back
// exactly as SnapshotKey found it.
type keySnapshot[V record.Bean] struct {
	dirty     bool
	tombstone bool
	existed   bool
	value     V
}

// SnapshotKey captures k's current state ahead of a pkg/sctx-tracked
// Put or Remove, for RestoreKey to undo that call with.
func (t *Table[K, V]) SnapshotKey(k K) any {
	if raw, ok := t.modified.Load(k); ok {
		e := raw.(modEntry[V])
		return keySnapshot[V]{dirty: true, tombstone: e.tombstone, value: e.value}
	}
	if cached, ok := t.readCache.Peek(k); ok {
		return keySnapshot[V]{existed: true, value: cached.(V)}
	}
	return keySnapshot[V]{}
}

// RestoreKey reinstates k to a previously captured SnapshotKey result.
// A dirty snapshot is written back verbatim, so a pending flush from
// before this transaction survives the rollback untouched; otherwise the
// modified-map entry this transaction created is removed and the read
// cache is set back to whatever (if anything) it held before, satisfying
// spec §4.D's put/remove undo invariants.
func (t *Table[K, V]) RestoreKey(k K, snapshot any) {
	snap := snapshot.(keySnapshot[V])
	if snap.dirty {
		t.modified.Store(k, modEntry[V]{value: snap.value, tombstone: snap.tombstone})
		return
	}
	t.modified.Delete(k)
	if snap.existed {
		t.setState(snap.value, record.SHARED)
		t.readCache.Add(k, snap.value)
	} else {
		t.readCache.Remove(k)
	}
}

// Walk scans committed Storage (never the modified map) over r in
// ascending or descending order, calling handler for each key until it
// returns false or the range is exhausted. completed is false when handler
// stopped the scan early.
func (t *Table[K, V]) Walk(r Range[K], reverse bool, handler func(k K, v V) bool) (completed bool, err error) {
	if reverse {
		return t.walkReverse(r, handler)
	}
	return t.walkForward(r, handler)
}

func (t *Table[K, V]) walkForward(r Range[K], handler func(K, V) bool) (bool, error) {
	var pivot []byte
	mode := storage.IterGreaterOrEqual
	if r.Lo != nil {
		pivot = t.storageKey(*r.Lo)
		if !r.InclusiveLo {
			mode = storage.IterGreater
		}
	} else {
		pivot = tableLowerBound(t.id)
	}

	var upper []byte
	hiInclusive := r.InclusiveHi
	if r.Hi != nil {
		upper = t.storageKey(*r.Hi)
	} else {
		upper = tableUpperBound(t.id)
		hiInclusive = false
	}

	it, err := t.store.Iter(mode, pivot)
	if err != nil {
		return false, err
	}
	defer it.Close()

	for it.Valid() {
		key := it.Key()
		cmp := bytes.Compare(key, upper)
		if hiInclusive {
			if cmp > 0 {
				break
			}
		} else if cmp >= 0 {
			break
		}
		if !t.visit(key, it.Value(), handler) {
			return false, nil
		}
		if !it.Next() {
			break
		}
	}
	return true, nil
}

func (t *Table[K, V]) walkReverse(r Range[K], handler func(K, V) bool) (bool, error) {
	var pivot []byte
	mode := storage.IterLessOrEqual
	if r.Hi != nil {
		pivot = t.storageKey(*r.Hi)
		if !r.InclusiveHi {
			mode = storage.IterLess
		}
	} else {
		pivot = tableUpperBound(t.id)
		mode = storage.IterLess
	}

	var lower []byte
	loInclusive := r.InclusiveLo
	if r.Lo != nil {
		lower = t.storageKey(*r.Lo)
	} else {
		lower = tableLowerBound(t.id)
		loInclusive = true
	}

	it, err := t.store.Iter(mode, pivot)
	if err != nil {
		return false, err
	}
	defer it.Close()

	for it.Valid() {
		key := it.Key()
		cmp := bytes.Compare(key, lower)
		if loInclusive {
			if cmp < 0 {
				break
			}
		} else if cmp <= 0 {
			break
		}
		if !t.visit(key, it.Value(), handler) {
			return false, nil
		}
		if !it.Prev() {
			break
		}
	}
	return true, nil
}

func (t *Table[K, V]) visit(physicalKey, raw []byte, handler func(K, V) bool) bool {
	o := codec.Wrap(physicalKey)
	if _, err := o.UnmarshalUvarint32(); err != nil {
		return true
	}
	k, err := t.kc.Decode(o)
	if err != nil {
		return true
	}
	v, err := record.UnmarshalValue(t.stub, raw)
	if err != nil {
		return true
	}
	return handler(k, v.(V))
}

// PendingOp pairs a staged write with the confirmation that must run only
// once that write is known durable. Staging never mutates the modified
// map or read cache by itself — Confirm does that — so a WriteBatch that
// fails leaves every entry exactly where it was, dirty and unflushed, for
// the next checkpoint tick to retry (spec §7).
type PendingOp struct {
	Op      storage.WriteOp
	Confirm func()
}

// TrySaveModified makes a single best-effort pass over the modified map:
// entries whose record lock is uncontended are staged into the returned
// batch. Entries under contention are left in place for a later pass.
// Called by the checkpoint pipeline's Phase A/B.
func (t *Table[K, V]) TrySaveModified(holder any, counts *FlushCounts) []PendingOp {
	var ops []PendingOp
	t.modified.Range(func(key, value any) bool {
		k := key.(K)
		entry := value.(modEntry[V])
		id := t.LockID(k)
		if !t.locks.TryAcquire(id, holder) {
			counts.Skipped++
			return true
		}
		defer t.locks.Release(id, holder)

		ops = append(ops, t.stagePending(k, entry))
		counts.Saved++
		return true
	})
	return ops
}

// SaveModified drains every remaining modified-map entry unconditionally.
// Called only from inside the checkpoint pipeline's Phase C quiesce, where
// no procedure can be concurrently mutating this table.
func (t *Table[K, V]) SaveModified(counts *FlushCounts) []PendingOp {
	var ops []PendingOp
	t.modified.Range(func(key, value any) bool {
		k := key.(K)
		entry := value.(modEntry[V])
		ops = append(ops, t.stagePending(k, entry))
		counts.Saved++
		return true
	})
	return ops
}

// stagePending builds entry's WriteOp without touching the modified map
// or read cache. The returned Confirm only runs after the caller's
// WriteBatch has durably committed that op; it uses CompareAndDelete
// rather than an unconditional Delete because the record lock staging
// acquired (Phase A/B) is released before WriteBatch runs (only the
// Phase C quiesce is held through WriteBatch and Confirm), so a new
// Put/Remove/Modify may have already
// replaced this entry by confirmation time — in which case the newer
// entry must survive untouched for the next checkpoint to flush.
func (t *Table[K, V]) stagePending(k K, entry modEntry[V]) PendingOp {
	key := t.storageKey(k)
	if entry.tombstone {
		return PendingOp{
			Op: storage.Delete(key),
			Confirm: func() {
				t.modified.CompareAndDelete(k, entry)
			},
		}
	}
	op := storage.Put(key, record.MarshalValue(entry.value))
	return PendingOp{
		Op: op,
		Confirm: func() {
			if t.modified.CompareAndDelete(k, entry) {
				t.setState(entry.value, record.SHARED)
				t.readCache.Add(k, entry.value)
			}
		},
	}
}

// DirtyCount reports the current modified-map size, for metrics sampling.
func (t *Table[K, V]) DirtyCount() int {
	n := 0
	t.modified.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// ReadCacheSize reports the current read-cache occupancy.
func (t *Table[K, V]) ReadCacheSize() int {
	return t.readCache.Len()
}
