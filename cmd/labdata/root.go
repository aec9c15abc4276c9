package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BadgerOps/labdata/internal/config"
	"github.com/BadgerOps/labdata/internal/fetcher"
	"github.com/BadgerOps/labdata/internal/registry"
	"github.com/BadgerOps/labdata/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath   string
	baseDir   string
	envFile   string
	logLevel  string
	logFormat string
	quiet     bool
	noHistory bool
	globalCfg *config.Config
	logger    *slog.Logger = slog.Default()

	// Global components
	globalStore    *store.Store
	globalRegistry *registry.Registry
	globalFetcher  fetcher.Fetcher
)

// initializeComponents builds the registry, the downloader and, when the
// command keeps history, the store
func initializeComponents(cmdName string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	reg, err := registry.FromConfig(globalCfg.Labs)
	if err != nil {
		return fmt.Errorf("failed to build dataset registry: %w", err)
	}
	globalRegistry = reg

	globalFetcher = fetcher.NewKaggleCLI(globalCfg.Tool.Binary, globalCfg.Tool.CredentialsPath, logger)

	if noHistory || !usesHistory(cmdName) {
		return nil
	}

	dbPath := globalCfg.ResolvedDBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return historyUnavailable(cmdName, fmt.Errorf("creating history directory: %w", err))
	}
	st, err := store.New(dbPath, logger)
	if err != nil {
		return historyUnavailable(cmdName, err)
	}
	globalStore = st

	logger.Debug("components initialized", "labs", globalRegistry.Len(), "db", dbPath)
	return nil
}

// historyUnavailable is fatal only for commands that exist to read history.
func historyUnavailable(cmdName string, err error) error {
	if cmdName == "status" {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	logger.Warn("run history disabled", "error", err)
	return nil
}

func usesHistory(cmdName string) bool {
	historyCmds := map[string]bool{
		"download": true,
		"manifest": true,
		"status":   true,
	}
	return historyCmds[cmdName]
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmdName string) bool {
	skipInitCmds := map[string]bool{
		"help":    true,
		"version": true,
		"config":  true,
		"show":    true,
	}
	return skipInitCmds[cmdName]
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
		globalStore = nil
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labdata",
		Short: "Download and catalogue the Kaggle datasets used by the course labs",
		Long: `labdata fetches the external datasets each lab project needs through the
kaggle CLI, asks before downloading into directories that already hold files,
and writes a dataset_manifest.json describing what is present under every
lab's data/raw directory.`,
		Example: `  labdata download --lab 1
  labdata download 2 3 --skip-check
  labdata manifest
  labdata labs --datasets
  labdata status --lab 1`,
		Version:      "0.1.0",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logging
			setupLogging()

			// Skip config loading for commands that don't need it
			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}

			// Load config
			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			// Environment, then command-line flags
			globalCfg.ApplyEnv()
			if baseDir != "" {
				globalCfg.Workspace.BaseDir = baseDir
			}

			logger.Debug("config loaded", "path", cfgPath, "base_dir", globalCfg.Workspace.BaseDir)

			// Initialize components after config is loaded
			if !shouldSkipComponentInit(cmd.Name()) {
				if err := initializeComponents(cmd.Name()); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
	}

	// Add persistent flags
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "override the course repository root containing the lab directories")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file (default .env if present)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress progress output")
	cmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "do not record runs in the history database")

	// Add subcommands
	cmd.AddCommand(
		newDownloadCmd(),
		newManifestCmd(),
		newLabsCmd(),
		newCheckCmd(),
		newStatusCmd(),
		newConfigCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":    true,
		"version": true,
	}
	return skipConfigCmds[cmdName]
}
