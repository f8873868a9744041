package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DirtyRecordsTotal is the current size of a table's modified_map.
	DirtyRecordsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beandb_dirty_records_total",
			Help: "Current number of dirty records pending flush, by table",
		},
		[]string{"table"},
	)

	ReadCacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beandb_read_cache_size",
			Help: "Current number of entries in a table's read cache",
		},
		[]string{"table"},
	)

	SessionQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beandb_session_queue_depth",
			Help: "Total number of procedures queued across all session FIFOs",
		},
	)

	CheckpointDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beandb_checkpoint_duration_seconds",
			Help:    "Duration of a full checkpoint pass by phase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	CheckpointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beandb_checkpoints_total",
			Help: "Total number of completed checkpoints by outcome",
		},
		[]string{"outcome"},
	)

	BackupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beandb_backups_total",
			Help: "Total number of hot backups by outcome",
		},
		[]string{"outcome"},
	)

	LockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beandb_lock_wait_seconds",
			Help:    "Time a procedure spent blocked acquiring record locks",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	ProcedureRedoTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beandb_procedure_redo_total",
			Help: "Total number of procedure redo cycles",
		},
	)

	ProcedureInterruptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beandb_procedure_interrupted_total",
			Help: "Total number of procedures interrupted by the watchdog",
		},
	)

	ProcedureDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beandb_procedure_duration_seconds",
			Help:    "Procedure execute() wall time, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(DirtyRecordsTotal)
	prometheus.MustRegister(ReadCacheSize)
	prometheus.MustRegister(SessionQueueDepth)
	prometheus.MustRegister(CheckpointDuration)
	prometheus.MustRegister(CheckpointsTotal)
	prometheus.MustRegister(BackupsTotal)
	prometheus.MustRegister(LockWaitDuration)
	prometheus.MustRegister(ProcedureRedoTotal)
	prometheus.MustRegister(ProcedureInterruptedTotal)
	prometheus.MustRegister(ProcedureDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
