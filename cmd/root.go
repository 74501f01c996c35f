package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/skyplan/app"
	"github.com/kilianp07/skyplan/config"
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/scheduler"
	"github.com/kilianp07/skyplan/infra/logger"
)

var (
	cfgPath   string
	schedPath string
)

var rootCmd = &cobra.Command{
	Use:           "skyplan",
	Short:         "Plan telescope follow-up of gravitational-wave sky maps",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&schedPath, "schedule", "", "scheduler overrides for this run (YAML or JSON)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// withService loads the configuration, builds the service and runs fn with a
// context canceled on SIGINT or SIGTERM.
func withService(fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if schedPath != "" {
		ov, err := scheduler.LoadOverrides(schedPath)
		if err != nil {
			return fmt.Errorf("load schedule: %w", err)
		}
		cfg.Scheduler = ov.Apply(cfg.Scheduler)
		if err := cfg.Scheduler.Validate(); err != nil {
			return err
		}
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return fn(ctx, svc)
}

func loadGrid(path string) (*model.ProbabilityGrid, error) {
	if path == "" {
		return nil, fmt.Errorf("--grid is required")
	}
	return model.LoadGrid(path)
}

// writeOutput writes to path, or to stdout when path is empty. The csv flag
// passed to fn is set for a .csv path.
func writeOutput(stdout io.Writer, path string, fn func(w io.Writer, csv bool) error) error {
	if path == "" {
		return fn(stdout, false)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f, strings.EqualFold(filepath.Ext(path), ".csv")); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
