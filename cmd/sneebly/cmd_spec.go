package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhmac/sneebly/internal/store"
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Spec execution loop: run an approved spec through edit -> verify -> rollback",
}

var specExecCmd = &cobra.Command{
	Use:   "exec <id>",
	Short: "Execute one approved spec by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		eng, err := newEngine(ctx, resolveWorkspace(), configPath, apiKey)
		if err != nil {
			return err
		}

		spec, err := eng.Queue.Load(store.QueueApproved, args[0])
		if err != nil {
			return fmt.Errorf("load spec %s: %w", args[0], err)
		}

		outcome, err := eng.SpecRunner.Run(ctx, spec)
		if err != nil {
			return fmt.Errorf("run spec %s: %w", args[0], err)
		}

		fmt.Printf("spec %s: %s\n", args[0], outcome)
		return nil
	},
}
