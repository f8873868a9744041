// Package lock implements the sharded reentrant record-lock pool: a fixed
// power-of-two array of reentrant mutexes addressed by a table-salted hash
// of the record key. Collisions across tables/keys are expected and bound
// total lock memory; they do not affect correctness, only contention.
package lock

import (
	"github.com/cespare/xxhash/v2"
)

// Hash64 derives the key-hash half of a lock id from a key's encoded bytes.
func Hash64(keyBytes []byte) uint64 {
	return xxhash.Sum64(keyBytes)
}

// ID combines a table's salt with a key hash into a lock id. Different
// tables intentionally collide by design; the pool only ever looks at the
// low bits of the id.
func ID(tableSalt uint64, keyHash uint64) uint64 {
	return tableSalt ^ keyHash
}

// Pool is a fixed array of reentrant locks, sized to a power of two.
type Pool struct {
	locks []*reentrant
	mask  uint64
}

// NewPool builds a pool of size locks. size is rounded up to the next
// power of two if it isn't one already.
func NewPool(size int) *Pool {
	n := nextPowerOfTwo(size)
	p := &Pool{
		locks: make([]*reentrant, n),
		mask:  uint64(n - 1),
	}
	for i := range p.locks {
		p.locks[i] = newReentrant()
	}
	return p
}

func nextPowerOfTwo(n int) int {
	if n < 1 {
		return 1
	}
	v := 1
	for v < n {
		v <<= 1
	}
	return v
}

// Index returns the shard index a lock id maps to.
func (p *Pool) Index(id uint64) int {
	return int(id & p.mask)
}

// Size returns the number of shards in the pool.
func (p *Pool) Size() int { return len(p.locks) }

// Acquire blocks until the shard for id is held by holder (reentrant if
// already held by holder).
func (p *Pool) Acquire(id uint64, holder any) {
	p.locks[p.Index(id)].lock(holder)
}

// TryAcquire attempts a non-blocking acquisition, used by the checkpoint
// pipeline's best-effort flush pass. Reentrant for a holder that already
// holds the shard.
func (p *Pool) TryAcquire(id uint64, holder any) bool {
	return p.locks[p.Index(id)].tryLock(holder)
}

// Release releases one level of holder's hold on the shard for id. Panics
// if holder does not hold it, mirroring a programming-error contract: lock
// APIs in this codebase are always paired.
func (p *Pool) Release(id uint64, holder any) {
	p.locks[p.Index(id)].unlock(holder)
}

// Holds reports whether holder currently holds the shard for id.
func (p *Pool) Holds(id uint64, holder any) bool {
	return p.locks[p.Index(id)].holds(holder)
}

// AcquireSorted acquires the distinct shard indexes covered by ids, always
// in ascending index order, to prevent deadlock against any other caller
// that also sorts. Callers must have released all previously held locks
// first (the procedure runtime's lock() contract).
func (p *Pool) AcquireSorted(ids []uint64, holder any) {
	for _, idx := range distinctSortedIndexes(p, ids) {
		p.locks[idx].lock(holder)
	}
}

// ReleaseAll releases holder's hold on every distinct shard covered by ids.
func (p *Pool) ReleaseAll(ids []uint64, holder any) {
	for _, idx := range distinctSortedIndexes(p, ids) {
		p.locks[idx].unlock(holder)
	}
}

func distinctSortedIndexes(p *Pool, ids []uint64) []int {
	seen := make(map[int]struct{}, len(ids))
	idxs := make([]int, 0, len(ids))
	for _, id := range ids {
		idx := p.Index(id)
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		idxs = append(idxs, idx)
	}
	// insertion sort: the set of held locks per procedure is small
	// (bounded by maxLockPerProcedure), so this beats sort.Ints's
	// overhead in practice and avoids an extra import.
	for i := 1; i < len(idxs); i++ {
		for j := i; j > 0 && idxs[j-1] > idxs[j]; j-- {
			idxs[j-1], idxs[j] = idxs[j], idxs[j-1]
		}
	}
	return idxs
}
