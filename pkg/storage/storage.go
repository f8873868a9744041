package storage

import "errors"

// ErrNotFound is a sentinel for an absent key. Storage.Get does not return
// it: Get reports an absent key through its ok result with a nil error.
var ErrNotFound = errors.New("storage: not found")

// Options configures an embedded store on Open.
type Options struct {
	WriteBufferBytes   int
	CacheBytes         int
	FileSizeBytes      int
	CompressionEnabled bool
	ReuseLogs          bool
}

// IterMode selects where a positioned iterator starts relative to a pivot
// key.
type IterMode int

const (
	// IterLess positions at the greatest key strictly less than pivot.
	IterLess IterMode = iota
	// IterLessOrEqual positions at the greatest key <= pivot.
	IterLessOrEqual
	// IterGreaterOrEqual positions at the smallest key >= pivot.
	IterGreaterOrEqual
	// IterGreater positions at the smallest key strictly greater than pivot.
	IterGreater
)

// WriteOp is one entry of an atomic write_batch: either a put or a
// tombstone delete.
type WriteOp struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// Put builds a put WriteOp.
func Put(key, value []byte) WriteOp { return WriteOp{Key: key, Value: value} }

// Delete builds a tombstone WriteOp.
func Delete(key []byte) WriteOp { return WriteOp{Key: key, Tombstone: true} }

// Iterator is a positioned, single-threaded cursor over the key space.
// Exactly one Iterator may be open per Storage at a time implementations
// are free to serialize concurrent Iter calls behind a single read
// transaction).
type Iterator interface {
	// Valid reports whether the cursor is on an entry.
	Valid() bool
	// Key returns the current entry's key. Only valid while Valid().
	Key() []byte
	// Value returns the current entry's value. Only valid while Valid().
	Value() []byte
	// Next advances to the next key in ascending order.
	Next() bool
	// Prev advances to the previous key in ascending order (i.e. moves
	// backwards).
	Prev() bool
	// Close releases the underlying read transaction.
	Close() error
}

// Storage is the narrow contract the Table/TableLong cache and the
// checkpoint pipeline need from an embedded, ordered byte-KV store. It
// deliberately does not expose the store's own transaction type: callers
// only ever get/iterate/write_batch.
type Storage interface {
	// Open creates or opens the store rooted at path.
	Open(path string, opts Options) error
	// Get performs a point read. ok is false when key is absent; err is
	// only non-nil on a storage-level failure.
	Get(key []byte) (value []byte, ok bool, err error)
	// WriteBatch applies ops atomically: all entries are visible to
	// concurrent readers, or none are.
	WriteBatch(ops []WriteOp) error
	// Iter returns a positioned iterator. mode and pivot determine the
	// starting position; Next/Prev continue from there.
	Iter(mode IterMode, pivot []byte) (Iterator, error)
	// HotBackup produces a consistent snapshot of the store without
	// stopping writers, tagging the destination file with timestampTag.
	// It returns the number of bytes copied.
	HotBackup(dstPath string, timestampTag string) (int64, error)
	// Property returns implementation-defined diagnostics (e.g. "stats").
	Property(name string) (string, error)
	// Close releases the store's resources.
	Close() error
}
