package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/isotopp/deploy/internal/access"
	"github.com/isotopp/deploy/internal/config"
	"github.com/isotopp/deploy/internal/deploy"
	"github.com/isotopp/deploy/internal/history"
	"github.com/isotopp/deploy/internal/site"
	"github.com/isotopp/deploy/internal/store"
)

var version = "dev" // Will be set during build

var (
	configFile string
	storeDir   string
	debugLevel int
	dryRun     bool
	timeoutSec int

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Manage hosted-site deployment descriptors",
	Long: `Deploy manages per-project deployment descriptors on a single host and
drives lifecycle operations against them: create, delete, show, start, stop,
restart, update, logs, and code deployment.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to deploy.yaml configuration file")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "Descriptor store directory (overrides config)")
	rootCmd.PersistentFlags().CountVarP(&debugLevel, "debug", "d", "Increase debug output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Print what would be done without doing it")
	rootCmd.PersistentFlags().IntVar(&timeoutSec, "timeout", site.DefaultTimeout, "Command timeout in seconds")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the host config and checks the invoking user against the
// allow-list. It runs before every operation that touches the store or
// spawns a process.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	level := slog.LevelInfo
	if debugLevel > 0 {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}

	if storeDir != "" {
		cfg.StoreDir = storeDir
	}

	identity, err := access.CurrentUser()
	if err != nil {
		return err
	}
	if _, err := access.NewGuard(cfg.AllowedUsers).Authorize(identity); err != nil {
		return err
	}

	logger.Debug("authorized", "user", identity, "store", cfg.StoreDir)
	return nil
}

// commonOptions builds the common site options for the current invocation.
func commonOptions(op site.Operation, project string) site.Options {
	return site.Options{
		Operation: op,
		Project:   project,
		Debug:     debugLevel,
		DryRun:    dryRun,
		Timeout:   timeoutSec,
	}
}

// newDispatcher wires the store, pipeline, and optional history
// together for one invocation.
func newDispatcher(withHistory bool) *deploy.Dispatcher {
	st := store.New(cfg.StoreDir, cfg.Domain)

	var hist *history.History
	if withHistory && cfg.HistoryDB != "" {
		var err error
		hist, err = history.New(cfg.HistoryDB)
		if err != nil {
			logger.Warn("history database unavailable, continuing without it", "db", cfg.HistoryDB, "error", err)
			hist = nil
		}
	}

	pipe := deploy.NewPipeline(st, deploy.ExecRunner{}, os.Stdout, logger)
	pipe.History = hist
	pipe.DryRun = dryRun

	return deploy.NewDispatcher(st, pipe, hist, os.Stdout, logger)
}

// runBare dispatches an operation that needs only the common fields.
func runBare(op site.Operation, withHistory bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		opts, err := site.Bare(commonOptions(op, args[0]))
		if err != nil {
			return err
		}
		return newDispatcher(withHistory).Dispatch(cmd.Context(), opts)
	}
}
