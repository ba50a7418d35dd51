package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codecell/config"
	"codecell/engine"
	"codecell/locator"
	"codecell/logging"
)

var rootCmd = &cobra.Command{
	Use:   "codecell [file]",
	Short: "Sandboxed JavaScript cell runner",
	Long: `codecell - Run untrusted JavaScript cells in an isolated context.

Every run gets a fresh context with no filesystem, network, or host access.
Console output and display() emissions are captured and rendered; a hard
deadline terminates runaway cells.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun, // default to run command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Duration("deadline", 0, "Execution deadline (default $CODECELL_DEADLINE or 5s)")
	rootCmd.PersistentFlags().String("base-path", "", "Deployment path prefix for engine assets")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	addRunFlags(rootCmd)
}

// newEngine builds the engine from environment config plus flag overrides.
func newEngine(cmd *cobra.Command) (*engine.Engine, *zap.Logger) {
	cfg := config.LoadOrDefault()

	if d, _ := cmd.Flags().GetDuration("deadline"); d > 0 {
		cfg.Engine.Deadline = d
	}
	if base, _ := cmd.Flags().GetString("base-path"); base != "" {
		cfg.Engine.BasePath = base
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	locator.Configure(cfg.Engine.BasePath)

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New(
		engine.WithDeadline(cfg.Engine.Deadline),
		engine.WithLogger(log),
	)
	return eng, log
}
