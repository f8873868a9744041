/*
Package checkpoint implements the background commit pipeline: the
single-threaded actor that drains every table's modified map into a
durable Storage write batch, and the conditional hot-backup step that
rides along with it.

Checkpoint owns no tables itself — callers Register each table (or
TableLong, which satisfies FlushableTable via its embedded *Table) once
at startup, then either let Start's scheduled tick drive RunFull on the
configured cadence or call Checkpoint/CheckpointAsync directly for the
administrative operations of §6.
*/
package checkpoint

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/beandb/pkg/events"
	"github.com/cuemby/beandb/pkg/log"
	"github.com/cuemby/beandb/pkg/metrics"
	"github.com/cuemby/beandb/pkg/procedure"
	"github.com/cuemby/beandb/pkg/storage"
	"github.com/cuemby/beandb/pkg/table"
)

// FlushableTable is the narrow surface Checkpoint needs from a registered
// table. table.Table and table.TableLong both satisfy it structurally —
// TableLong inherits every method from its embedded *Table[int64, V].
type FlushableTable interface {
	Name() string
	TrySaveModified(holder any, counts *table.FlushCounts) []table.PendingOp
	SaveModified(counts *table.FlushCounts) []table.PendingOp
	DirtyCount() int
}

// Config bundles the checkpoint/backup cadence knobs of §6.
type Config struct {
	CommitPeriod     time.Duration
	CommitModCount   int
	ResaveCount      int
	BackupPeriod     time.Duration
	FullBackupPeriod time.Duration
	BackupBase       time.Time
	BackupPath       string
	DBName           string
}

// Checkpoint is the scheduled commit/backup actor (spec §4.F).
type Checkpoint struct {
	store  storage.Storage
	gate   *procedure.CommitGate
	cfg    Config
	broker *events.Broker

	// Sweeper, if set, is invoked at Phase G to remove empty per-session
	// FIFO queues — owned by pkg/dbmanager, not this package.
	Sweeper func()

	mu              sync.Mutex
	tables          []FlushableTable
	lastCommit      time.Time
	lastBackup      time.Time
	backupRequested bool

	stopCh chan struct{}
}

// New builds a Checkpoint actor. gate is the commit gate procedures take
// the shared side of; broker may be nil to disable event publication.
func New(store storage.Storage, gate *procedure.CommitGate, cfg Config, broker *events.Broker) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		store:      store,
		gate:       gate,
		cfg:        cfg,
		broker:     broker,
		lastCommit: now,
		lastBackup: now,
		stopCh:     make(chan struct{}),
	}
}

// Register adds a table to the set RunFull flushes. Call before Start.
func (c *Checkpoint) Register(t FlushableTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = append(c.tables, t)
}

// Start begins the 1-second scheduled tick (spec §4.F: "scheduled every
// 1 second").
func (c *Checkpoint) Start() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.tick(time.Now())
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts the scheduled tick. It does not run a final checkpoint;
// callers that need one should call Checkpoint() first.
func (c *Checkpoint) Stop() {
	close(c.stopCh)
}

// tick runs a full commit if either threshold of §4.F is met.
func (c *Checkpoint) tick(now time.Time) {
	c.mu.Lock()
	due := now.Sub(c.lastCommit) >= c.cfg.CommitPeriod || c.dirtyTotalLocked() >= c.cfg.CommitModCount
	c.mu.Unlock()
	if !due {
		return
	}
	if err := c.RunFull(now); err != nil {
		log.WithComponent("checkpoint").Error().Err(err).Msg("scheduled checkpoint failed")
	}
}

func (c *Checkpoint) dirtyTotalLocked() int {
	total := 0
	for _, t := range c.tables {
		total += t.DirtyCount()
	}
	return total
}

// Checkpoint runs one full commit synchronously — the `checkpoint()`
// administrative operation of §6.
func (c *Checkpoint) Checkpoint() error {
	return c.RunFull(time.Now())
}

// CheckpointAsync runs one full commit in the background, logging (but
// not returning) its error — the `checkpoint_async()` administrative
// operation of §6.
func (c *Checkpoint) CheckpointAsync() {
	go func() {
		if err := c.RunFull(time.Now()); err != nil {
			log.WithComponent("checkpoint").Error().Err(err).Msg("async checkpoint failed")
		}
	}()
}

// BackupNextCheckpoint requests that the next RunFull perform Phase F's
// hot backup regardless of elapsed time since the last one — the
// `backup_next_checkpoint()` administrative operation of §6.
func (c *Checkpoint) BackupNextCheckpoint() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backupRequested = true
}

// RunFull executes Phases A through G of the commit pipeline (spec
// §4.F). It is safe to call concurrently with Start's own tick (a second
// caller simply serializes behind the mutex for the duration of the
// flush accounting; Phase C's commit-gate acquisition serializes against
// in-flight procedures, not against a second checkpoint run).
func (c *Checkpoint) RunFull(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := metrics.NewTimer()
	var counts table.FlushCounts

	// Phase A: concurrent, best-effort.
	pending := c.tryPassLocked(&counts)

	// Phase B: second pass if residual exceeds the resave threshold.
	if c.dirtyTotalLocked() > c.cfg.ResaveCount {
		pending = append(pending, c.tryPassLocked(&counts)...)
	}

	// Phase C: quiesce, drain the remainder unconditionally.
	c.gate.Lock()
	for _, t := range c.tables {
		pending = append(pending, t.SaveModified(&counts)...)
	}

	ops := make([]storage.WriteOp, len(pending))
	for i, p := range pending {
		ops[i] = p.Op
	}

	// Phase D: durable atomic batch. bbolt's Update transaction fsyncs on
	// commit, satisfying the design's separate write_batch+commit(sync)
	// as one call. Each table's modified-map/read-cache state is only
	// advanced once the batch is known durable (Confirm below) — a failed
	// WriteBatch leaves every staged entry dirty for the next tick to
	// retry, instead of losing it (spec §7).
	writeErr := c.store.WriteBatch(ops)
	if writeErr == nil {
		for _, p := range pending {
			p.Confirm()
		}
	}

	// Phase E: release, resume procedure execution.
	c.gate.Unlock()

	timer.ObserveDurationVec(metrics.CheckpointDuration, "full")

	if writeErr != nil {
		metrics.CheckpointsTotal.WithLabelValues("failed").Inc()
		c.publish(events.EventCheckpointFailed, fmt.Sprintf("write_batch failed: %v", writeErr))
		return writeErr
	}
	c.lastCommit = now
	metrics.CheckpointsTotal.WithLabelValues("success").Inc()
	c.publish(events.EventCheckpointCompleted, fmt.Sprintf("%d ops, %d saved, %d skipped", len(ops), counts.Saved, counts.Skipped))

	// Phase F: conditional hot backup.
	if c.backupRequested || now.Sub(c.lastBackup) >= c.cfg.BackupPeriod {
		if err := c.runBackupLocked(now); err != nil {
			log.WithComponent("checkpoint").Error().Err(err).Msg("hot backup failed")
		}
		c.backupRequested = false
	}

	// Phase G: sweep empty per-session FIFO queues.
	if c.Sweeper != nil {
		c.Sweeper()
	}

	return nil
}

func (c *Checkpoint) tryPassLocked(counts *table.FlushCounts) []table.PendingOp {
	var ops []table.PendingOp
	for _, t := range c.tables {
		ops = append(ops, t.TrySaveModified(c, counts)...)
	}
	return ops
}

// backupTimestampTag quantizes now to the configured FullBackupPeriod
// relative to BackupBase, so recurring backups align to a fixed epoch
// rather than drifting with wall-clock jitter (spec §9, Open Question 3:
// a single cadence driven by BackupPeriod, with FullBackupPeriod/
// BackupBase only quantizing the tag).
func (c *Checkpoint) backupTimestampTag(now time.Time) string {
	period := c.cfg.FullBackupPeriod
	if period <= 0 {
		return now.Format("20060102T150405")
	}
	elapsed := now.Sub(c.cfg.BackupBase)
	quantized := elapsed - elapsed%period
	return c.cfg.BackupBase.Add(quantized).Format("20060102T150405")
}

func (c *Checkpoint) runBackupLocked(now time.Time) error {
	tag := c.backupTimestampTag(now)
	dst := filepath.Join(c.cfg.BackupPath, c.cfg.DBName)

	backupTimer := metrics.NewTimer()
	written, err := c.store.HotBackup(dst, tag)
	backupTimer.ObserveDurationVec(metrics.CheckpointDuration, "backup")
	if err != nil {
		metrics.BackupsTotal.WithLabelValues("failed").Inc()
		return err
	}
	c.lastBackup = now
	metrics.BackupsTotal.WithLabelValues("success").Inc()
	c.publish(events.EventBackupCompleted, fmt.Sprintf("%s.%s: %d bytes", dst, tag, written))
	return nil
}

func (c *Checkpoint) publish(t events.EventType, msg string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{Type: t, Message: msg})
}
