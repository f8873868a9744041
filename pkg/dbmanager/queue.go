package dbmanager

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/beandb/pkg/beanerr"
	"github.com/cuemby/beandb/pkg/procedure"
)

// sidQueue is one session's FIFO of pending procedures. draining tracks
// whether a drainer task is currently alive (running or about to be
// resubmitted) for this sid, so that an empty-to-nonempty transition
// observed while a drainer is already active does not spawn a second,
// concurrently-running drainer for the same sid — which would violate
// the per-sid FIFO guarantee (spec §8, "no two procedures run the same
// sid concurrently").
type sidQueue struct {
	mu       sync.Mutex
	items    []*procedure.Procedure
	stopped  bool
	draining bool

	// removed is set under mu by sweepEmptyQueues in the same critical
	// section as its m.queues.Delete, so a SubmitSession that already
	// holds a pointer to this queue (fetched before the sweep ran) can
	// detect the eviction after acquiring mu and retry against a fresh
	// queueFor lookup instead of appending to an orphaned struct no
	// drainer will ever see again.
	removed bool
}

func (q *sidQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// SubmitSession enqueues p on sid's FIFO — the session-ordered
// `submit(sid, proc)` of §4.G. Procedures submitted under the same sid
// run in enqueue order; different sids are unordered with respect to
// each other.
func (m *Manager) SubmitSession(sid string, p *procedure.Procedure) error {
	if atomic.LoadInt32(&m.isExit) == 1 {
		return beanerr.ErrShuttingDown
	}

	for {
		q := m.queueFor(sid)

		q.mu.Lock()
		if q.removed {
			// sweepEmptyQueues evicted this queue between queueFor and
			// this Lock; it has no drainer and the map no longer points
			// to it, so retry against whatever queueFor resolves next.
			q.mu.Unlock()
			continue
		}
		if q.stopped {
			q.mu.Unlock()
			return beanerr.ErrSessionStopped
		}
		if len(q.items) >= m.cfg.MaxSessionProcedure {
			q.mu.Unlock()
			return beanerr.ErrSessionQueueFull
		}
		q.items = append(q.items, p)
		shouldSpawn := !q.draining
		if shouldSpawn {
			q.draining = true
		}
		q.mu.Unlock()

		if shouldSpawn {
			m.runOnWorker(func() { m.drain(q) })
		}
		return nil
	}
}

func (m *Manager) queueFor(sid string) *sidQueue {
	if v, ok := m.queues.Load(sid); ok {
		return v.(*sidQueue)
	}
	v, _ := m.queues.LoadOrStore(sid, &sidQueue{})
	return v.(*sidQueue)
}

// drain is the per-sid drainer task: it runs up to maxBatchProceduer
// procedures inline in FIFO order, then either clears q.draining (if the
// queue emptied out) or re-submits itself to the worker pool for another
// generation — keeping exactly one drainer lineage alive per sid while
// there is work, instead of a dedicated goroutine per session.
func (m *Manager) drain(q *sidQueue) {
	for i := 0; i < m.cfg.MaxBatchProcedure; i++ {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		p := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		_ = p.Execute(m.runtime())
	}

	q.mu.Lock()
	nonEmpty := len(q.items) > 0
	if !nonEmpty {
		q.draining = false
	}
	q.mu.Unlock()
	if nonEmpty {
		m.runOnWorker(func() { m.drain(q) })
	}
}

// StopQueue stops sid's FIFO: pending procedures are dropped and further
// SubmitSession calls for sid fail with beanerr.ErrSessionStopped — the
// `stop_queue(sid)` administrative operation of §6. Returns the number
// of procedures dropped.
func (m *Manager) StopQueue(sid string) int {
	q := m.queueFor(sid)
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := len(q.items)
	q.items = nil
	q.stopped = true
	return dropped
}

// sweepEmptyQueues removes sid entries whose FIFO is empty, undrained and
// was never stopped — Phase G of the checkpoint pipeline (§4.F). A
// stopped queue is left in place so a late SubmitSession still observes
// ErrSessionStopped rather than silently starting a fresh queue.
//
// The empty check and the map deletion happen in the same mu-held
// critical section as setting removed, closing the TOCTOU window a
// separate check-then-delete would leave: a SubmitSession that fetched
// this queue before the sweep started either acquires mu first and
// appends (so the sweep finds the queue non-empty and keeps it) or
// acquires mu after the sweep and observes removed==true (and retries) —
// never neither.
func (m *Manager) sweepEmptyQueues() {
	m.queues.Range(func(key, value any) bool {
		q := value.(*sidQueue)
		q.mu.Lock()
		if len(q.items) == 0 && !q.stopped && !q.draining {
			q.removed = true
			m.queues.Delete(key)
		}
		q.mu.Unlock()
		return true
	})
}
