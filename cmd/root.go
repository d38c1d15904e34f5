// Package cmd defines the summitcrawler CLI: a coordinator role that owns task
// lifecycle and assignment, and a worker role that accepts assignments.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/config"
	"github.com/JakeFAU/summit-index-crawler/internal/logging"
)

type appKeyType string

const appKey appKeyType = "app"

// app carries what every subcommand needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

// loadApp is a variable so tests can substitute configuration loading.
var loadApp = func(path, role string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		Role:        role,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "summitcrawler",
		Short: "Crawl orchestration for the summit index.",
		Long: `summitcrawler schedules index source refreshes, tracks crawl task
lifecycle, probes worker health and distributes crawl queues across workers.
Run one coordinator and any number of workers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cfgFile, cmd.Name())
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(a.logger)
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, err := resolveApp(cmd.Context()); err == nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.AddCommand(newCoordinatorCmd(), newWorkerCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	if ctx == nil {
		return nil, errors.New("command context is nil")
	}
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application not initialized")
	}
	return a, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
