package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-table dirty/cache counters and session queue depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = m.Shutdown() }()

		fmt.Printf("%-20s %-12s %s\n", "TABLE", "DIRTY", "READ_CACHE")
		for _, s := range m.TableStats() {
			fmt.Printf("%-20s %-12d %d\n", s.Name, s.DirtyCount, s.ReadCacheSize)
		}
		fmt.Printf("\nsession queue depth: %d\n", m.SessionQueueDepth())
		return nil
	},
}
