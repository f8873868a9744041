package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Force a hot backup on the next checkpoint, then run it",
	Long: `backup requests a hot backup regardless of the configured backup
period (Phase F's backup_requested flag) and immediately runs a
synchronous checkpoint so the backup happens within this invocation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = m.Shutdown() }()

		m.BackupNextCheckpoint()
		if err := m.Checkpoint(); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		fmt.Println("backup complete")
		return nil
	},
}
