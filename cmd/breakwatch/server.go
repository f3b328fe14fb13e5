package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/breakwatch/internal/api"
	"github.com/goodtune/breakwatch/internal/backup"
	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/goodtune/breakwatch/internal/config"
	"github.com/goodtune/breakwatch/internal/metrics"
	"github.com/goodtune/breakwatch/internal/registry"
	"github.com/goodtune/breakwatch/internal/storage"
	"github.com/goodtune/breakwatch/internal/storage/bolt"
	redisstore "github.com/goodtune/breakwatch/internal/storage/redis"
	"github.com/goodtune/breakwatch/internal/systemd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the breakwatch server",
	Long:  `Start the breakwatch server with the break tracking API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting breakwatch")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Back up the audit database before opening it
	if cfg.Backup.Enabled && cfg.Storage.Type == "bolt" {
		if err := backup.Run(cfg.Storage.Path, cfg.Backup.Dir, cfg.Backup.Keep, logger); err != nil {
			return fmt.Errorf("failed to back up database: %w", err)
		}
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	// Load the active session registry snapshot
	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("failed to load session registry: %w", err)
	}
	if active := reg.List(); len(active) > 0 {
		logger.Info().Int("sessions", len(active)).Msg("Recovered in-flight sessions from snapshot")
	}

	// Build the policy table
	policies, err := cfg.Policies()
	if err != nil {
		return fmt.Errorf("failed to build policy table: %w", err)
	}

	// Initialize the limit engine
	engine, err := breaks.NewEngine(policies, reg, store.Audit(), store.Employees(), breaks.RealClock{}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	logger.Info().Msg("Break engine initialized")

	// Start the API server
	apiServer := api.NewServer(api.Config{
		ListenAddr: fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort),
	}, engine, logger)
	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Start the metrics server
	metricsServer := metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort), logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd readiness")
	}

	logger.Info().Msg("Breakwatch startup complete")
	logger.Info().Msgf("API: http://%s:%d/api/v1", cfg.Server.BindAddress, cfg.Server.APIPort)
	logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd shutdown")
	}

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}
	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("Breakwatch stopped")
	return nil
}

// openStorage selects the storage backend from configuration.
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "redis":
		return redisstore.Open(cfg.Redis)
	default:
		return bolt.Open(cfg.Path)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
