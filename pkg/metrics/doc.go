/*
Package metrics exposes Prometheus instrumentation for the table cache,
checkpoint pipeline and procedure runtime, plus a small process health
registry reused by the admin HTTP surface.

# Metrics

  - beandb_dirty_records_total{table}, beandb_read_cache_size{table}: per
    table cache occupancy, sampled by Collector.
  - beandb_session_queue_depth: total procedures queued across session
    FIFOs.
  - beandb_checkpoint_duration_seconds{phase}, beandb_checkpoints_total,
    beandb_backups_total: checkpoint pipeline visibility.
  - beandb_lock_wait_seconds, beandb_procedure_redo_total,
    beandb_procedure_interrupted_total, beandb_procedure_duration_seconds:
    procedure runtime visibility.

Handler() returns the promhttp handler to mount on an admin HTTP mux.

# Collector

Collector polls a StatsSource (pkg/dbmanager's Manager satisfies it) on a
fixed interval and writes the sampled counts into the gauges above; it does
not touch the counters/histograms, which callers update inline at the call
site (checkpoint phases, procedure redo, lock acquisition).

# Health

RegisterComponent/UpdateComponent feed a small in-memory health registry;
HealthHandler/ReadyHandler/LivenessHandler expose it over HTTP for an
external supervisor or load balancer.
*/
package metrics
