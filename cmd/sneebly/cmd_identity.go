package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Verify or acknowledge changes to sneebly's own identity files",
}

var identityVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-hash the declared identity files and report any drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		eng, err := newEngine(ctx, resolveWorkspace(), configPath, apiKey)
		if err != nil {
			return err
		}

		verification, err := eng.Identity.Verify()
		if err != nil {
			return fmt.Errorf("verify identity: %w", err)
		}

		if verification.Valid {
			fmt.Println("identity files unchanged")
			return nil
		}

		fmt.Println("identity files changed:")
		for _, c := range verification.Changes {
			fmt.Printf("  %s: %s -> %s\n", c.File, c.OldHash, c.NewHash)
		}
		return fmt.Errorf("identity verification failed: %d file(s) changed", len(verification.Changes))
	},
}

var identityAcknowledgeCmd = &cobra.Command{
	Use:   "acknowledge",
	Short: "Accept the current identity file contents as the new baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		eng, err := newEngine(ctx, resolveWorkspace(), configPath, apiKey)
		if err != nil {
			return err
		}

		if err := eng.Identity.AcknowledgeChanges(); err != nil {
			return fmt.Errorf("acknowledge identity changes: %w", err)
		}

		fmt.Println("identity checksums updated")
		return nil
	},
}
