package table

import (
	"bytes"

	"github.com/cuemby/beandb/pkg/beanerr"
	"github.com/cuemby/beandb/pkg/codec"
	"github.com/cuemby/beandb/pkg/lock"
	"github.com/cuemby/beandb/pkg/record"
	"github.com/cuemby/beandb/pkg/storage"
)

// counterPrefixByte is the reserved leading byte for a TableLong's
// persisted id counter. It can never collide with a legal
// varuint(table_id) because every uvarint first byte has top bits in
// {0, 10, 110, 1110, 11110000}, none of which is 0xF1 (1111 0001).
const counterPrefixByte = 0xF1

// counterLockMarker is a fixed, out-of-band hash input used to derive a
// dedicated lock id for a TableLong's id counter, distinct from any
// record key's lock id.
const counterLockMarker = uint64(0xF1F1F1F1F1F1F1F1)

// TableLong specializes Table for non-negative int64 keys and adds a
// persisted id counter, stored not as an ordinary record but as the
// reserved key 0xF1 || uvarint(table_id) || varlong(value) with an empty
// value body — the counter's current value lives entirely in the key, so
// updating it means deleting the old key and inserting the new one.
type TableLong[V record.Bean] struct {
	*Table[int64, V]
}

// NewLong builds a TableLong.
func NewLong[V record.Bean](id uint32, name string, store storage.Storage, locks *lock.Pool, salt uint64, stub V, cacheSize int) (*TableLong[V], error) {
	t, err := New[int64, V](id, name, store, locks, salt, Int64KeyCodec{}, stub, cacheSize)
	if err != nil {
		return nil, err
	}
	return &TableLong[V]{Table: t}, nil
}

// CounterLockID returns the dedicated lock id guarding this table's id
// counter, distinct from every record key's lock id.
func (t *TableLong[V]) CounterLockID() uint64 {
	return lock.ID(t.salt, lock.Hash64(counterKeyMarkerBytes(t.id)))
}

func counterKeyMarkerBytes(tableID uint32) []byte {
	o := codec.NewOctets()
	o.MarshalByte(counterPrefixByte)
	o.MarshalUvarint32(tableID)
	return o.Bytes()
}

func (t *TableLong[V]) counterPrefix() []byte {
	return counterKeyMarkerBytes(t.id)
}

func (t *TableLong[V]) counterKey(value int64) []byte {
	o := codec.NewOctets()
	o.MarshalBytes(t.counterPrefix())
	o.MarshalVarint(value)
	return o.Bytes()
}

// GetIDCounter returns the counter's current value and whether it has
// ever been set. An unset counter reads as (0, false); the first assigned
// id is always >= 1 (0 is reserved).
func (t *TableLong[V]) GetIDCounter() (int64, bool, error) {
	prefix := t.counterPrefix()
	it, err := t.store.Iter(storage.IterGreaterOrEqual, prefix)
	if err != nil {
		return 0, false, err
	}
	defer it.Close()

	if !it.Valid() || !bytes.HasPrefix(it.Key(), prefix) {
		return 0, false, nil
	}
	o := codec.Wrap(it.Key()[len(prefix):])
	v, err := o.UnmarshalVarint()
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// SetIDCounter atomically replaces the persisted counter value. Callers
// must hold CounterLockID().
func (t *TableLong[V]) SetIDCounter(holder any, value int64) error {
	if !t.locks.Holds(t.CounterLockID(), holder) {
		return beanerr.ErrLockViolation
	}
	var ops []storage.WriteOp
	if old, ok, err := t.GetIDCounter(); err != nil {
		return err
	} else if ok {
		ops = append(ops, storage.Delete(t.counterKey(old)))
	}
	ops = append(ops, storage.Put(t.counterKey(value), []byte{}))
	return t.store.WriteBatch(ops)
}

// NextID atomically increments and persists the counter, returning the
// newly assigned id. Callers must hold CounterLockID().
func (t *TableLong[V]) NextID(holder any) (int64, error) {
	current, _, err := t.GetIDCounter()
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := t.SetIDCounter(holder, next); err != nil {
		return 0, err
	}
	return next, nil
}
