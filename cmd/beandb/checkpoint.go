package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Run one synchronous checkpoint against --db-path and exit",
	Long: `checkpoint opens the store at --db-path, runs a single full commit
pass (the A-G pipeline: try-pass, conditional second pass, exclusive
drain, durable write_batch, gate release, conditional backup, session
queue sweep), and reports the result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = m.Shutdown() }()

		if err := m.Checkpoint(); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		fmt.Println("checkpoint complete")
		return nil
	},
}
