package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adbsmartd/adbsmartd/internal/config"
)

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.GetDefaultConfig(), cfg)
}

func TestLoad_AppliesDefaultsOverPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen:
  port: 6000
logging:
  level: DEBUG
`), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Listen.Port)
	assert.Equal(t, "127.0.0.1", cfg.Listen.Host)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, []string{"shell"}, cfg.ServerFeatures)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_RejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: VERBOSE
`), 0644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_DevicesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
devices:
  - serial: emulator-5554
    state: device
    properties:
      ro.product.model: Pixel
    features:
      - shell_v2
`), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Devices, 1)
	assert.Equal(t, "emulator-5554", cfg.Devices[0].Serial)

	devices := config.ToRegistryDevices(cfg.Devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "Pixel", devices[0].Property("ro.product.model"))
	assert.Equal(t, []string{"shell_v2"}, devices[0].Features)
}

func TestLoad_RejectsDuplicateSerials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
devices:
  - serial: emulator-5554
  - serial: emulator-5554
`), 0644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
