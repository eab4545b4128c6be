package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/adbsmartd/adbsmartd/internal/adbserver"
	"github.com/adbsmartd/adbsmartd/internal/config"
	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/internal/logger"
	"github.com/adbsmartd/adbsmartd/internal/shellproto"
	"github.com/adbsmartd/adbsmartd/internal/syncproto"
	"github.com/adbsmartd/adbsmartd/internal/telemetry"
	"github.com/adbsmartd/adbsmartd/pkg/metrics"
	metricsprom "github.com/adbsmartd/adbsmartd/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the adbsmartd server",
	Long: `Start the adbsmartd server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/adbsmartd/config.yaml.

Examples:
  # Start with default config location
  adbsmartd start

  # Start with custom config
  adbsmartd start --config /etc/adbsmartd/config.yaml

  # Start with environment variable overrides
  ADBSMARTD_LOGGING_LEVEL=DEBUG adbsmartd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "adbsmartd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err.Error())
		}
	}()

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}

	var m metrics.ServerMetrics
	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.InitRegistry()
		m = metricsprom.NewServerMetrics(reg)
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	registry := device.NewStaticRegistry(config.ToRegistryDevices(cfg.Devices))
	logger.Info("device registry initialized", "devices", len(cfg.Devices))

	fs := newSyncFileSystem(cfg.Sync)
	executor := shellproto.LocalExecutor{Shell: cfg.Shell.Shell}

	srvCfg := adbserver.Config{
		ListenHost:      cfg.Listen.Host,
		ListenPort:      cfg.Listen.Port,
		ProtocolVersion: cfg.ProtocolVersion,
		ServerFeatures:  cfg.ServerFeatures,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if cfg.Metrics.Enabled {
		srvCfg.MetricsPort = cfg.Metrics.Port
		srvCfg.Registry = reg
	}

	srv := adbserver.New(srvCfg, registry, fs, executor, m)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("adbsmartd is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", logger.KeyError, err.Error())
			return err
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", logger.KeyError, err.Error())
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

// newSyncFileSystem builds the FileSystem sync: serves requests against.
// An empty RootDir selects the in-memory filesystem, useful for devices-less
// testing; a configured RootDir selects the local-disk one.
func newSyncFileSystem(cfg config.SyncConfig) syncproto.FileSystem {
	if cfg.RootDir == "" {
		return syncproto.NewMemoryFileSystem()
	}
	return syncproto.NewLocalFileSystem(cfg.RootDir)
}

func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	return config.GetDefaultConfigPath()
}
