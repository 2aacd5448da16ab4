// Package main implements the archi CLI - an autonomous personal AI
// agent control plane.
//
// This file serves as the entry point and command registration hub.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"archi/internal/logging"
)

var (
	verbose   bool
	dataDir   string
	cfgPath   string
	timeout   time.Duration

	logger *zap.Logger
)

// rootCmd represents the base command. Run without arguments it boots
// every component and starts the interactive chat loop; subcommands
// let a script or cron entry drive a single action without the TUI.
var rootCmd = &cobra.Command{
	Use:   "archi",
	Short: "Archi - an autonomous personal AI agent",
	Long: `Archi is an autonomous personal AI agent control plane.

It routes between a local and remote Completion Provider under a Budget
Ledger's hard-stop limits, caches repeat requests, decomposes goals into
plans it executes through a sandboxed Tool Registry, wakes on an Activity
Scheduler heartbeat even with nobody watching, and spends idle time on a
Dream Cycle chewing through lower-priority goals. A Safety Controller
gates every action the Agent Loop or the chat Interaction Source wants
to take.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		dd := dataDir
		if dd == "" {
			dd = "./data"
		}
		if err := logging.Initialize(dd); err != nil {
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
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (default: ./data)")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file path (default: <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 25*time.Minute, "Operation timeout for one-shot commands")

	rootCmd.AddCommand(goalCmd, statusCmd, runCmd, dreamCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
