package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pmpwsk/cocoding/internal/logger"
	"github.com/pmpwsk/cocoding/pkg/api"
	"github.com/pmpwsk/cocoding/pkg/auth"
	"github.com/pmpwsk/cocoding/pkg/config"
	"github.com/pmpwsk/cocoding/pkg/metrics"
	sessionmetrics "github.com/pmpwsk/cocoding/pkg/metrics/prometheus"
	"github.com/pmpwsk/cocoding/pkg/session"
	"github.com/pmpwsk/cocoding/pkg/store"
	"github.com/pmpwsk/cocoding/pkg/store/state"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cocoding server",
	Long: `Start the cocoding server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/cocoding/config.yaml.

Examples:
  # Start with the default config file
  cocoding start

  # Start with a custom config file
  cocoding start --config /etc/cocoding/config.yaml

  # Start with environment variable overrides
  COCODING_LOGGING_LEVEL=DEBUG cocoding start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// Metrics first so the collectors created below register themselves.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	rel, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open relational store: %w", err)
	}
	defer func() {
		if err := rel.Close(); err != nil {
			logger.Error("Relational store close error", logger.KeyError, err)
		}
	}()
	logger.Info("Relational store ready", "type", cfg.Database.Type)

	states, err := state.NewBadgerStore(state.Options{Dir: cfg.State.Dir})
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer func() {
		if err := states.Close(); err != nil {
			logger.Error("State store close error", logger.KeyError, err)
		}
	}()
	logger.Info("State store ready", "dir", cfg.State.Dir)

	sessMetrics := sessionmetrics.NewSessionMetrics()

	registry := session.NewRegistry(rel, states)
	locks := session.NewLockTable()
	hub := session.NewHub(registry, locks, rel, states, sessMetrics)

	worker := session.NewWorker(registry, rel, states, sessMetrics, cfg.Worker)
	worker.Start(ctx)
	defer worker.Stop(cfg.ShutdownTimeout)
	logger.Info("Persistence worker started",
		"interval", cfg.Worker.Interval,
		"reconcile_every", cfg.Worker.ReconcileEvery)

	authSvc := auth.NewService(rel, cfg.Auth.TokenTTL)

	server := api.NewServer(cfg.Server, hub, authSvc, rel)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
