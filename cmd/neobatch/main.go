// Package main provides the neobatch CLI entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agenthands/neobatch/internal/config"
	"github.com/agenthands/neobatch/internal/core"
	"github.com/agenthands/neobatch/internal/core/identity"
	"github.com/agenthands/neobatch/internal/driver"
	"github.com/agenthands/neobatch/internal/logging"
	"github.com/agenthands/neobatch/internal/metrics"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	rootCmd := &cobra.Command{
		Use:   "neobatch",
		Short: "Buffered batch writer for Neo4j-compatible graph stores",
		Long: `neobatch buffers node and relation records, removes duplicates and
commits them to a graph store in two phases: nodes first, then relations.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", os.Getenv("NEOBATCH_CONFIG"), "Path to a TOML or YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("neobatch v%s (%s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStreamCmd())
	rootCmd.AddCommand(newIndexCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds everything a subcommand needs once the store is reachable.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	writer *core.Writer
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bootstrap connects to the store and builds the writer. A store that
// cannot be reached is fatal.
func bootstrap(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	index := identity.NewIndex()
	if cfg.Identity.Path != "" {
		store, err := identity.OpenBadgerStore(cfg.Identity.Path)
		if err != nil {
			return nil, err
		}
		index, err = identity.OpenIndex(store)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("identity index loaded",
			zap.String("path", cfg.Identity.Path),
			zap.Int("identities", index.Len()))
	}

	gw, err := driver.New(ctx, cfg.Store, logger)
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("connect to graph store: %w", err)
	}

	w := core.NewWriter(gw, index, core.OptionsFromConfig(cfg.Writer), logger, metrics.New())
	return &app{cfg: cfg, logger: logger, writer: w}, nil
}

// close drains the writer with a fresh deadline so a cancelled run context
// still gets its buffered records written.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.writer.Close(ctx)
	if err != nil {
		a.logger.Error("writer close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
	return err
}
