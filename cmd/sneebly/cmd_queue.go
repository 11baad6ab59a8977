package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhmac/sneebly/internal/store"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect sneebly's spec queues",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print spec counts per queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		eng, err := newEngine(ctx, resolveWorkspace(), configPath, apiKey)
		if err != nil {
			return err
		}

		for _, q := range []store.QueueName{store.QueueApproved, store.QueuePending, store.QueueCompleted, store.QueueFailed} {
			specs, err := eng.Queue.List(q)
			if err != nil {
				return fmt.Errorf("list %s queue: %w", q, err)
			}
			fmt.Printf("%-12s %d\n", q, len(specs))
			for _, s := range specs {
				fmt.Printf("  %-24s %s\n", s.ID, s.Description)
			}
		}
		return nil
	},
}
