package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhmac/sneebly/internal/heartbeat"
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Run the heartbeat orchestrator's fixed tick sequence",
	Long: `heartbeat runs sneebly's monitoring loop: every tick walks the same
ten-step sequence (identity verify, drain error log, build system prompt,
health probe, crawl pass, error triage, performance analysis, interval-gated
codebase discovery, drain approved queue, weekly deep-analysis /
self-improver) in order.

With --once it ticks a single time and exits; otherwise it loops on the
configured interval until the context is cancelled (Ctrl-C).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		eng, err := newEngine(ctx, resolveWorkspace(), configPath, apiKey)
		if err != nil {
			return err
		}

		if once {
			result := eng.Heartbeat.Tick(ctx)
			printTickResult(result)
			return nil
		}

		for {
			result := eng.Heartbeat.Tick(ctx)
			printTickResult(result)
			if result.Aborted {
				return fmt.Errorf("heartbeat halted: %s", result.Reason)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			interval := time.Duration(eng.Config.Heartbeat.IntervalSec) * time.Second
			eng.Heartbeat.Sleep(ctx, interval)
			if ctx.Err() != nil {
				return nil
			}
		}
	},
}

func printTickResult(result heartbeat.TickResult) {
	for _, step := range result.Steps {
		status := "skipped"
		if step.Ran {
			status = "ran"
		}
		fmt.Printf("[%s] %s: %s\n", status, step.Step, step.Detail)
	}
	if result.Aborted {
		fmt.Printf("tick aborted: %s\n", result.Reason)
	}
}
