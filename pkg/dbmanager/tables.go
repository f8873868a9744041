package dbmanager

import (
	"github.com/cuemby/beandb/pkg/lock"
	"github.com/cuemby/beandb/pkg/record"
	"github.com/cuemby/beandb/pkg/table"
)

// OpenTable builds and registers a Table under m — the
// `open_table(id,name,lock_name,cache_size,stub_k,stub_v) → Table`
// administrative operation of §6. Go methods cannot introduce extra type
// parameters beyond a generic receiver's own, so this is a package-level
// function rather than a Manager method.
func OpenTable[K comparable, V record.Bean](m *Manager, id uint32, name, lockName string, cacheSize int, kc table.KeyCodec[K], stub V) (*table.Table[K, V], error) {
	salt := lock.Hash64([]byte(lockName))
	t, err := table.New[K, V](id, name, m.store, m.locks, salt, kc, stub, cacheSize)
	if err != nil {
		return nil, err
	}
	m.registerTable(t)
	return t, nil
}

// OpenTableLong builds and registers a TableLong under m — the
// `open_table(id,name,lock_name,cache_size,stub_v) → TableLong`
// administrative operation of §6.
func OpenTableLong[V record.Bean](m *Manager, id uint32, name, lockName string, cacheSize int, stub V) (*table.TableLong[V], error) {
	salt := lock.Hash64([]byte(lockName))
	t, err := table.NewLong[V](id, name, m.store, m.locks, salt, stub, cacheSize)
	if err != nil {
		return nil, err
	}
	m.registerTable(t)
	return t, nil
}

func (m *Manager) registerTable(t statsTable) {
	m.mu.Lock()
	m.tables = append(m.tables, t)
	m.mu.Unlock()
	m.cp.Register(t)
}
