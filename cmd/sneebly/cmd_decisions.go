package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect sneebly's decision log",
}

var decisionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show decision records whose filename contains id",
	Long: `DecisionLog only appends; there is no index keyed by an opaque id, so
show matches against the <timestamp>-<action> filename stem the log itself
assigns at Record time, e.g. "20260730T120000Z-auto-fixer-applied".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		eng, err := newEngine(ctx, resolveWorkspace(), configPath, apiKey)
		if err != nil {
			return err
		}

		entries, err := os.ReadDir(eng.Store.Layout.Decisions)
		if err != nil {
			return fmt.Errorf("read decisions directory: %w", err)
		}

		var matches []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if strings.Contains(e.Name(), args[0]) {
				matches = append(matches, e.Name())
			}
		}
		sort.Strings(matches)

		if len(matches) == 0 {
			fmt.Printf("no decision records match %q\n", args[0])
			return nil
		}

		for _, name := range matches {
			data, err := os.ReadFile(filepath.Join(eng.Store.Layout.Decisions, name))
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			fmt.Printf("--- %s ---\n%s\n", name, data)
		}
		return nil
	},
}
