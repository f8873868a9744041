package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var recordsBucket = []byte("records")

// BoltAdapter implements Storage over a single bbolt database file. All
// per-table keyspaces share one bucket; the table_id varuint prefix that
// Table encodes into every key (see pkg/table) keeps each table's entries
// lexicographically contiguous within it, which is what gives range scans
// their per-table boundaries.
type BoltAdapter struct {
	db   *bolt.DB
	path string
}

// NewBoltAdapter returns an adapter not yet backed by an open database;
// call Open before use.
func NewBoltAdapter() *BoltAdapter {
	return &BoltAdapter{}
}

func (a *BoltAdapter) Open(path string, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: create data dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("storage: create bucket: %w", err)
	}
	a.db = db
	a.path = path
	return nil
}

func (a *BoltAdapter) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := a.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get(key)
		if v == nil {
			return nil
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (a *BoltAdapter) WriteBatch(ops []WriteOp) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		for _, op := range ops {
			if op.Tombstone {
				if err := b.Delete(op.Key); err != nil {
					return err
				}
				continue
			}
			if err := b.Put(op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *BoltAdapter) Iter(mode IterMode, pivot []byte) (Iterator, error) {
	tx, err := a.db.Begin(false)
	if err != nil {
		return nil, err
	}
	c := tx.Bucket(recordsBucket).Cursor()
	it := &boltIterator{tx: tx, c: c}
	it.seed(mode, pivot)
	return it, nil
}

func (a *BoltAdapter) HotBackup(dstPath string, timestampTag string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return 0, fmt.Errorf("storage: create backup dir: %w", err)
	}
	tagged := fmt.Sprintf("%s.%s", dstPath, timestampTag)
	f, err := os.Create(tagged)
	if err != nil {
		return 0, fmt.Errorf("storage: create backup file: %w", err)
	}
	defer f.Close()

	var written int64
	err = a.db.View(func(tx *bolt.Tx) error {
		written, err = tx.WriteTo(f)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("storage: hot backup: %w", err)
	}
	return written, nil
}

func (a *BoltAdapter) Property(name string) (string, error) {
	switch name {
	case "path":
		return a.path, nil
	case "stats":
		stats := a.db.Stats()
		return fmt.Sprintf("tx=%d pendingPageN=%d freePageN=%d", stats.TxN, stats.PendingPageN, stats.FreePageN), nil
	default:
		return "", fmt.Errorf("storage: unknown property %q", name)
	}
}

func (a *BoltAdapter) Close() error {
	return a.db.Close()
}

type boltIterator struct {
	tx    *bolt.Tx
	c     *bolt.Cursor
	k, v  []byte
	valid bool
}

func (it *boltIterator) seed(mode IterMode, pivot []byte) {
	switch mode {
	case IterGreaterOrEqual:
		if pivot == nil {
			it.k, it.v = it.c.First()
		} else {
			it.k, it.v = it.c.Seek(pivot)
		}
	case IterGreater:
		if pivot == nil {
			it.k, it.v = it.c.First()
		} else {
			it.k, it.v = it.c.Seek(pivot)
			if it.k != nil && bytes.Equal(it.k, pivot) {
				it.k, it.v = it.c.Next()
			}
		}
	case IterLessOrEqual:
		if pivot == nil {
			it.k, it.v = it.c.Last()
		} else {
			k, v := it.c.Seek(pivot)
			if k == nil {
				it.k, it.v = it.c.Last()
			} else if bytes.Equal(k, pivot) {
				it.k, it.v = k, v
			} else {
				it.k, it.v = it.c.Prev()
			}
		}
	case IterLess:
		if pivot == nil {
			it.k, it.v = it.c.Last()
		} else {
			k, _ := it.c.Seek(pivot)
			if k == nil {
				it.k, it.v = it.c.Last()
			} else {
				it.k, it.v = it.c.Prev()
			}
		}
	}
	it.valid = it.k != nil
}

func (it *boltIterator) Valid() bool { return it.valid }
func (it *boltIterator) Key() []byte { return it.k }
func (it *boltIterator) Value() []byte { return it.v }

func (it *boltIterator) Next() bool {
	it.k, it.v = it.c.Next()
	it.valid = it.k != nil
	return it.valid
}

func (it *boltIterator) Prev() bool {
	it.k, it.v = it.c.Prev()
	it.valid = it.k != nil
	return it.valid
}

func (it *boltIterator) Close() error {
	return it.tx.Rollback()
}
