/*
Package dbmanager implements the process-wide singleton of spec §4.G:
the session-ordered FIFO dispatcher in front of a fixed-size procedure
worker pool, wiring together pkg/lock, pkg/procedure, pkg/table and
pkg/checkpoint into the administrative operations of §6 (startup,
open_table, start_commit_thread, checkpoint/checkpoint_async,
backup_next_checkpoint, stop_queue, shutdown).
*/
package dbmanager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/beandb/pkg/beanerr"
	"github.com/cuemby/beandb/pkg/checkpoint"
	"github.com/cuemby/beandb/pkg/events"
	"github.com/cuemby/beandb/pkg/lock"
	"github.com/cuemby/beandb/pkg/metrics"
	"github.com/cuemby/beandb/pkg/procedure"
	"github.com/cuemby/beandb/pkg/storage"
)

// statsTable is what Manager needs from a registered table beyond what
// checkpoint.FlushableTable already requires, for the metrics collector.
type statsTable interface {
	checkpoint.FlushableTable
	ReadCacheSize() int
}

// Manager is the process-wide singleton owning the procedure worker
// pool, the session FIFO map, and the checkpoint/watchdog actors.
type Manager struct {
	cfg   Config
	store storage.Storage
	locks *lock.Pool
	gate  *procedure.CommitGate
	cp     *checkpoint.Checkpoint
	wd     *procedure.Watchdog
	broker *events.Broker
	slots  chan struct{}

	mu     sync.Mutex
	tables []statsTable
	queues sync.Map // sid -> *sidQueue

	isExit int32
}

// New builds a Manager from cfg. Call Startup before submitting work.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Startup wires store into the manager's lock pool, commit gate,
// watchdog and checkpoint actor — the `startup(storage)` administrative
// operation of §6. It does not start the scheduled checkpoint tick or
// the watchdog scan; call StartCommitThread for that.
func (m *Manager) Startup(store storage.Storage) error {
	m.store = store
	m.locks = lock.NewPool(m.cfg.LockPoolSize)
	m.gate = procedure.NewCommitGate()
	m.wd = procedure.NewWatchdog(m.cfg.procedureTimeout(), m.cfg.deadlockCheckInterval())
	m.broker = events.NewBroker()
	m.broker.Start()
	m.cp = checkpoint.New(store, m.gate, checkpoint.Config{
		CommitPeriod:     m.cfg.commitPeriod(),
		CommitModCount:   m.cfg.CommitModCount,
		ResaveCount:      m.cfg.CommitResaveCount,
		BackupPeriod:     m.cfg.backupPeriod(),
		FullBackupPeriod: m.cfg.fullBackupPeriod(),
		BackupBase:       m.cfg.backupBase(),
		BackupPath:       m.cfg.BackupPath,
		DBName:           m.cfg.DBName,
	}, m.broker)
	m.cp.Sweeper = m.sweepEmptyQueues
	m.slots = make(chan struct{}, m.cfg.DBThreadCount)
	return nil
}

// StartCommitThread starts the checkpoint actor's scheduled tick and the
// watchdog's scan loop — the `start_commit_thread()` administrative
// operation of §6.
func (m *Manager) StartCommitThread() {
	m.cp.Start()
	m.wd.Start()
}

// Locks returns the manager's shared lock pool, for building LockID
// salts and for tests that need to pre-acquire locks outside a
// procedure.
func (m *Manager) Locks() *lock.Pool { return m.locks }

// Events returns the operational event broker, for subscribers that want
// to observe checkpoint.completed, checkpoint.failed and backup.completed
// notifications.
func (m *Manager) Events() *events.Broker { return m.broker }

// Checkpoint runs one full commit synchronously.
func (m *Manager) Checkpoint() error { return m.cp.Checkpoint() }

// CheckpointAsync runs one full commit in the background.
func (m *Manager) CheckpointAsync() { m.cp.CheckpointAsync() }

// BackupNextCheckpoint requests a hot backup on the next checkpoint run
// regardless of elapsed time since the last one.
func (m *Manager) BackupNextCheckpoint() { m.cp.BackupNextCheckpoint() }

func (m *Manager) runtime() *procedure.Runtime {
	return &procedure.Runtime{
		Locks:                m.locks,
		Gate:                 m.gate,
		MaxRedo:              m.cfg.MaxProcedureRedo,
		WatchdogReg:          m.wd,
		MaxLocksPerProcedure: m.cfg.MaxLockPerProcedure,
	}
}

func (m *Manager) runOnWorker(fn func()) {
	m.slots <- struct{}{}
	go func() {
		defer func() { <-m.slots }()
		fn()
	}()
}

// Submit enqueues p directly onto the worker pool with no session
// ordering — the sid-less `submit(proc)` of §4.G.
func (m *Manager) Submit(p *procedure.Procedure) error {
	if atomic.LoadInt32(&m.isExit) == 1 {
		return beanerr.ErrShuttingDown
	}
	m.runOnWorker(func() { _ = p.Execute(m.runtime()) })
	return nil
}

// Shutdown acquires the commit gate to wait out every in-flight
// procedure, runs a final synchronous checkpoint, stops the checkpoint
// and watchdog actors, and closes Storage. After Shutdown returns, every
// Submit/SubmitSession call fails with beanerr.ErrShuttingDown — the
// `shutdown()` administrative operation of §6. Go has no equivalent of
// parking worker threads to sleep indefinitely on a new execute call; the
// isExit flag check at Submit/SubmitSession entry serves the same
// purpose of rejecting new work without racing in-flight commits.
func (m *Manager) Shutdown() error {
	atomic.StoreInt32(&m.isExit, 1)

	// RunFull's own Phase C acquires the commit gate's exclusive side,
	// which already waits out every procedure still in flight — no
	// separate gate acquisition is needed here.
	err := m.cp.RunFull(time.Now())

	m.cp.Stop()
	m.wd.Stop()
	m.broker.Stop()

	if closeErr := m.store.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// StatsSource implementation for pkg/metrics.

func (m *Manager) TableStats() []metrics.TableStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]metrics.TableStats, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, metrics.TableStats{
			Name:          t.Name(),
			DirtyCount:    t.DirtyCount(),
			ReadCacheSize: t.ReadCacheSize(),
		})
	}
	return out
}

func (m *Manager) SessionQueueDepth() int {
	total := 0
	m.queues.Range(func(_, v any) bool {
		q := v.(*sidQueue)
		total += q.len()
		return true
	})
	return total
}
