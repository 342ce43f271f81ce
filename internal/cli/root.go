// Package cli provides the command-line interface for prsync.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/db"
	"github.com/falconiq/prsync/internal/llm"
	"github.com/falconiq/prsync/internal/metrics"
	"github.com/falconiq/prsync/internal/task"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configFile string
	baseDir    string

	// Global config and wiring, populated in PersistentPreRunE.
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func() error
	collector *metrics.Collector
	dbClient  *db.Client
	paths     config.Paths
	registry  *task.Registry

	// Lazy-initialized LLM components
	embedder *llm.Embedder
	model    *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "prsync",
	Short: "Sync and enrich GitHub PR activity",
	Long: `Prsync downloads pull request activity for a roster of engineers,
maps each PR to a company goal, classifies review comments with an LLM,
and imports the aggregated stats into SurrealDB.

Progress is checkpointed per user and work direction, so an interrupted
run picks up where it stopped.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Steps listing, version, and help need no wiring.
		switch cmd.Name() {
		case "version", "help", "steps":
			return nil
		}

		cfg = config.Load()
		if configFile != "" {
			if err := cfg.ApplyFile(configFile); err != nil {
				return err
			}
		}
		if baseDir != "" {
			cfg.BaseDir = baseDir
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		collector = metrics.NewCollector()
		paths = config.Paths{Base: cfg.BaseDir}
		registry = task.NewRegistry(paths)

		ctx := cmd.Context()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		dbClient.SetCollector(collector)

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if collector != nil {
			if err := accumulateCosts(paths.CostFile(), collector.Snapshot()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to record LLM costs: %v\n", err)
			}
		}
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// getEmbedder lazily initializes the embedding client. Only the map
// step pays the provider handshake.
func getEmbedder(ctx context.Context) (*llm.Embedder, error) {
	if embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(ctx, cfg, collector)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	}
	return embedder, nil
}

// getModel lazily initializes the chat model used for classification.
func getModel(ctx context.Context) (*llm.Model, error) {
	if model == nil {
		var err error
		model, err = llm.NewModel(ctx, cfg, collector)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}
	return model, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML pipeline config file")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "override the artifact base directory")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(usageCmd)
}
