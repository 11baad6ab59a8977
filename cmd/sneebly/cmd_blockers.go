package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var blockersCmd = &cobra.Command{
	Use:   "blockers",
	Short: "Inspect active blockers left behind by a failed spec or build step",
}

var blockersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active blockers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		eng, err := newEngine(ctx, resolveWorkspace(), configPath, apiKey)
		if err != nil {
			return err
		}

		active, err := eng.Blockers.Active()
		if err != nil {
			return fmt.Errorf("list active blockers: %w", err)
		}

		if len(active) == 0 {
			fmt.Println("no active blockers")
			return nil
		}
		for _, b := range active {
			fmt.Printf("%s  spec=%s  file=%s  attempts=%d  %s\n", b.ID, b.SpecID, b.TargetFile, b.Attempts, b.Reason)
		}
		return nil
	},
}
