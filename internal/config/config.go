// Package config loads adbsmartd's server configuration from a YAML file
// with ADBSMARTD_* environment overrides, following the layering of the
// teacher's pkg/config.Load: Viper for file+env, mapstructure for decoding,
// then ApplyDefaults and Validate as plain Go passes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/adbsmartd/adbsmartd/internal/device"
)

// Config is the complete static configuration for an adbsmartd process.
type Config struct {
	Listen          ListenConfig          `mapstructure:"listen" yaml:"listen"`
	ProtocolVersion int                   `mapstructure:"protocol_version" yaml:"protocol_version"`
	ServerFeatures  []string              `mapstructure:"server_features" yaml:"server_features"`
	Logging         LoggingConfig         `mapstructure:"logging" yaml:"logging"`
	Telemetry       TelemetryConfig       `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics         MetricsConfig         `mapstructure:"metrics" yaml:"metrics"`
	Devices         []StaticDeviceConfig  `mapstructure:"devices" yaml:"devices"`
	Sync            SyncConfig            `mapstructure:"sync" yaml:"sync"`
	Shell           ShellConfig           `mapstructure:"shell" yaml:"shell"`
	ShutdownTimeout time.Duration         `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ListenConfig is the smart-socket TCP listener address.
type ListenConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// LoggingConfig controls logging behavior, mirroring internal/logger.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// StaticDeviceConfig describes one device the registry seeds at startup.
type StaticDeviceConfig struct {
	Serial     string            `mapstructure:"serial" yaml:"serial"`
	State      string            `mapstructure:"state" yaml:"state"`
	Properties map[string]string `mapstructure:"properties" yaml:"properties"`
	Features   []string          `mapstructure:"features" yaml:"features"`
}

// SyncConfig configures the sync:/ file transfer sub-protocol.
type SyncConfig struct {
	// RootDir is the directory LocalFileSystem resolves sync paths under.
	// Empty means the in-memory filesystem is used instead.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"`
}

// ShellConfig configures the shell:/shell,v2: sub-protocol.
type ShellConfig struct {
	// Shell overrides the host shell executable (otherwise $SHELL/COMSPEC).
	Shell string `mapstructure:"shell" yaml:"shell"`
}

// Load reads configuration from path (or the default XDG location if
// empty), applies ADBSMARTD_* environment overrides to every scalar key,
// fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setupViper(v, path)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// AutomaticEnv only consults keys Viper already knows from the file, so
	// every scalar key is bound explicitly; the list-valued keys (devices,
	// server_features) come from the file only.
	for _, key := range []string{
		"listen.host", "listen.port", "protocol_version",
		"logging.level", "logging.format", "logging.output",
		"telemetry.enabled", "telemetry.endpoint", "telemetry.insecure", "telemetry.sample_rate",
		"metrics.enabled", "metrics.port", "sync.root_dir", "shell.shell", "shutdown_timeout",
	} {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyADBServerPortFallback(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setupViper(v *viper.Viper, path string) {
	v.SetEnvPrefix("ADBSMARTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook converts YAML duration strings ("30s", "5m") to
// time.Duration, matching the teacher's mapstructure hook for the same
// problem (YAML/env values arrive as strings or numbers, never as a
// typed Go duration).
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.StringToTimeDurationHookFunc()
}

// applyADBServerPortFallback sources Listen.Port from $ADB_SERVER_PORT
// when neither the config file nor ADBSMARTD_LISTEN_PORT set it, matching the real adb client/server
// pair's own fallback (a host concern, not part of the wire protocol) and
// taking priority over ApplyDefaults's hardcoded 5037.
func applyADBServerPortFallback(cfg *Config) {
	if cfg.Listen.Port != 0 {
		return
	}
	env := os.Getenv("ADB_SERVER_PORT")
	if env == "" {
		return
	}
	port, err := strconv.Atoi(env)
	if err != nil {
		return
	}
	cfg.Listen.Port = port
}

// getConfigDir returns $XDG_CONFIG_HOME/adbsmartd, or ~/.config/adbsmartd,
// or "." if the home directory cannot be resolved.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "adbsmartd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "adbsmartd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ToRegistryDevices converts the configured static device list into
// device.Device values for seeding a device.Registry at startup.
func ToRegistryDevices(cfgs []StaticDeviceConfig) []*device.Device {
	devices := make([]*device.Device, 0, len(cfgs))
	for _, c := range cfgs {
		state := device.State(c.State)
		if state == "" {
			state = device.StateDevice
		}
		keys := make([]string, 0, len(c.Properties))
		for k := range c.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		props := make([]device.Property, 0, len(keys))
		for _, k := range keys {
			props = append(props, device.Property{Key: k, Value: c.Properties[k]})
		}
		devices = append(devices, &device.Device{
			ID:         c.Serial,
			Serial:     c.Serial,
			State:      state,
			Properties: props,
			Features:   c.Features,
		})
	}
	return devices
}
