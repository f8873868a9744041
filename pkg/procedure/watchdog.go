package procedure

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/beandb/pkg/log"
)

// Watchdog periodically scans registered in-flight procedures' begin
// times and requests interruption of any that have overrun their
// timeout. Go has no equivalent of forcibly interrupting a blocked OS
// thread, so interruption here is cooperative: it sets a flag a
// procedure observes at its next Lock call (the primary suspension
// point, spec §5) and translates into an ErrInterrupted panic there. A
// procedure parked on a single long Acquire with no further Lock calls
// is not reachable by this mechanism — a known limitation of expressing
// a forced-interrupt design on top of goroutines, recorded in DESIGN.md.
type Watchdog struct {
	mu        sync.Mutex
	procs     map[*Procedure]struct{}
	timeout   time.Duration
	interval  time.Duration
	stopCh    chan struct{}
}

// NewWatchdog builds a watchdog that scans every interval, interrupting
// procedures whose current attempt has run longer than timeout.
func NewWatchdog(timeout, interval time.Duration) *Watchdog {
	return &Watchdog{
		procs:    make(map[*Procedure]struct{}),
		timeout:  timeout,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background scan loop.
func (w *Watchdog) Start() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.scan()
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop halts the scan loop.
func (w *Watchdog) Stop() {
	close(w.stopCh)
}

func (w *Watchdog) register(p *Procedure) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.procs[p] = struct{}{}
}

func (w *Watchdog) unregister(p *Procedure) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.procs, p)
}

func (w *Watchdog) scan() {
	now := time.Now()
	w.mu.Lock()
	procs := make([]*Procedure, 0, len(w.procs))
	for p := range w.procs {
		procs = append(procs, p)
	}
	w.mu.Unlock()

	for _, p := range procs {
		if !p.Interruptible() {
			continue
		}
		begin := p.BeginTime()
		if begin.IsZero() {
			continue
		}
		if now.Sub(begin) > w.timeout {
			if atomic.CompareAndSwapInt32(&p.interruptRequested, 0, 1) {
				log.WithProcedure(p.Sid).Warn().Msg("procedure exceeded timeout, interruption requested")
			}
		}
	}
}
