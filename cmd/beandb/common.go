package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/beandb/pkg/dbmanager"
	"github.com/cuemby/beandb/pkg/record"
	"github.com/cuemby/beandb/pkg/storage"
	"github.com/cuemby/beandb/pkg/table"
)

// demoTableID/demoTableName/demoLockName identify the sample TableLong of
// *record.Pair the CLI opens so serve/stats have something to report on.
// A real deployment embeds the manager and opens its own tables instead.
const (
	demoTableID   = 1
	demoTableName = "pairs"
	demoLockName  = "pairs-lock"
	demoCacheSize = 1024
)

// loadConfig reads --config if given, otherwise DefaultConfig.
func loadConfig(cmd *cobra.Command) (dbmanager.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return dbmanager.DefaultConfig(), nil
	}
	return dbmanager.LoadConfig(path)
}

// openManager opens the embedded store at --db-path, starts up a Manager
// against it, and registers the demo table. Callers own the returned
// Manager and must call Shutdown.
func openManager(cmd *cobra.Command) (*dbmanager.Manager, *table.TableLong[*record.Pair], error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	dbPath, _ := cmd.Flags().GetString("db-path")

	store := storage.NewBoltAdapter()
	if err := store.Open(dbPath, cfg.StorageOptions.ToStorageOptions()); err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	m := dbmanager.New(cfg)
	if err := m.Startup(store); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("startup: %w", err)
	}

	tbl, err := dbmanager.OpenTableLong[*record.Pair](m, demoTableID, demoTableName, demoLockName, demoCacheSize, &record.Pair{})
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open table %s: %w", demoTableName, err)
	}

	return m, tbl, nil
}
