// This file serves as the entry point and command registration hub. The
// actual command implementations are split across cmd_*.go files.
//
// # File Index
//
//   - main.go            - entry point, rootCmd, global flags, init()
//   - engine.go          - newEngine(): wires safety/dispatch/codeengine/store/
//                          specloop/elon/heartbeat/planner into one struct
//   - collector.go       - hostCollector: HTTP adapter for probe.Collector
//   - cmd_init.go         - initCmd
//   - cmd_heartbeat.go    - heartbeatCmd
//   - cmd_elon.go         - elonCmd, elonRunCmd
//   - cmd_spec.go         - specCmd, specExecCmd
//   - cmd_queue.go        - queueCmd, queueStatusCmd
//   - cmd_blockers.go     - blockersCmd, blockersListCmd
//   - cmd_identity.go     - identityCmd, identityVerifyCmd, identityAcknowledgeCmd
//   - cmd_decisions.go    - decisionsCmd, decisionsShowCmd
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jhmac/sneebly/internal/logging"
)

var (
	verbose    bool
	apiKey     string
	workspace  string
	configPath string
	timeout    time.Duration

	logger *zap.Logger
)

// rootCmd is sneebly's entry point: a bounded, LLM-driven code-improvement
// core embedded in a host web service. Run without a subcommand it prints
// usage; "sneebly heartbeat" is the long-lived monitoring loop, every other
// subcommand drives a single pass of one component for operator inspection.
var rootCmd = &cobra.Command{
	Use:   "sneebly",
	Short: "sneebly - autonomous code-improvement core",
	Long: `sneebly observes a host web service, diagnoses problems, and proposes
and applies fixes through a bounded edit -> verify -> rollback loop.

It never reasons its way past the Safety Kernel: every file write, every
shell command, and every identity-file touch is screened before it can
reach disk or a process.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to initialize file logging: %v\n", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func resolveWorkspace() string {
	ws := workspace
	if ws == "" {
		ws, _ = os.Getwd()
		return ws
	}
	if abs, err := filepath.Abs(ws); err == nil {
		return abs
	}
	return ws
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "LLM vendor API key (or set ANTHROPIC_API_KEY / GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to sneebly config file (default: <workspace>/.sneebly/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 25*time.Minute, "Operation timeout")

	heartbeatCmd.Flags().Bool("once", false, "Run a single tick instead of looping")

	identityCmd.AddCommand(identityVerifyCmd, identityAcknowledgeCmd)
	elonCmd.AddCommand(elonRunCmd)
	specCmd.AddCommand(specExecCmd)
	queueCmd.AddCommand(queueStatusCmd)
	blockersCmd.AddCommand(blockersListCmd)
	decisionsCmd.AddCommand(decisionsShowCmd)

	rootCmd.AddCommand(
		initCmd,
		heartbeatCmd,
		elonCmd,
		specCmd,
		queueCmd,
		blockersCmd,
		identityCmd,
		decisionsCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
