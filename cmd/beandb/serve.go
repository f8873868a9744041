package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/beandb/pkg/dbmanager"
	"github.com/cuemby/beandb/pkg/log"
	"github.com/cuemby/beandb/pkg/metrics"
	"github.com/cuemby/beandb/pkg/procedure"
	"github.com/cuemby/beandb/pkg/record"
	"github.com/cuemby/beandb/pkg/table"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the manager and its commit/watchdog threads",
	Long: `serve boots the process-wide Manager against --db-path, starts its
scheduled checkpoint and deadlock-watchdog threads, and blocks until
interrupted, running a graceful Shutdown on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, tbl, err := openManager(cmd)
		if err != nil {
			return err
		}

		m.StartCommitThread()

		collector := metrics.NewCollector(m, 15*time.Second)
		collector.Start()

		// Demo heartbeat: periodically allocates a fresh id on the demo
		// table under its own session, one fresh uuid per run, so serve
		// has visible activity for stats to report without any client.
		heartbeatStop := make(chan struct{})
		go runHeartbeat(m, tbl, heartbeatStop)

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/health", metrics.HealthHandler())
			mux.HandleFunc("/ready", metrics.ReadyHandler())
			mux.HandleFunc("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		fmt.Printf("beandb serving, metrics at http://%s/metrics\n", metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("shutting down...")
		close(heartbeatStop)
		collector.Stop()
		if err := m.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		fmt.Println("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus /metrics and health endpoints")
}

func runHeartbeat(m *dbmanager.Manager, tbl *table.TableLong[*record.Pair], stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sid := uuid.New().String()
			p := procedure.New(sid, func(tc *procedure.ThreadContext) error {
				tc.Lock(tbl.CounterLockID())
				id, err := tbl.NextID(tc.Holder())
				if err != nil {
					return err
				}
				log.Logger.Debug().Str("sid", sid).Int64("id", id).Msg("heartbeat id allocated")
				return nil
			})
			if err := m.SubmitSession(sid, p); err != nil {
				log.Logger.Warn().Err(err).Msg("heartbeat submit failed")
			}
		}
	}
}
