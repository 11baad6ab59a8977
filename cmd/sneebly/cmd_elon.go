package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var elonCmd = &cobra.Command{
	Use:   "elon",
	Short: "Constraint solver: find and attack the single biggest limiting factor",
}

var elonRunCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Run one constraint cycle toward goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		eng, err := newEngine(ctx, resolveWorkspace(), configPath, apiKey)
		if err != nil {
			return err
		}

		outcome, err := eng.Cycle.RunOneCycle(ctx, args[0], nil)
		if err != nil {
			return fmt.Errorf("run constraint cycle: %w", err)
		}

		fmt.Printf("cycle outcome: %s\n", outcome)
		return nil
	},
}
