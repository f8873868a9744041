package metrics

import "time"

// TableStats is the per-table sample a StatsSource reports on each
// collection tick.
type TableStats struct {
	Name          string
	DirtyCount    int
	ReadCacheSize int
}

// StatsSource is the minimal surface the collector polls; pkg/dbmanager's
// Manager implements it over its registered tables and session queues.
type StatsSource interface {
	TableStats() []TableStats
	SessionQueueDepth() int
}

// Collector periodically samples a StatsSource into the package-level
// gauges.
type Collector struct {
	source   StatsSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector builds a collector that samples source every interval.
func NewCollector(source StatsSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{source: source, interval: interval, stopCh: make(chan struct{})}
}

// Start begins collecting in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for _, t := range c.source.TableStats() {
		DirtyRecordsTotal.WithLabelValues(t.Name).Set(float64(t.DirtyCount))
		ReadCacheSize.WithLabelValues(t.Name).Set(float64(t.ReadCacheSize))
	}
	SessionQueueDepth.Set(float64(c.source.SessionQueueDepth()))
}
