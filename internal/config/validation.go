package config

import "fmt"

// Validate checks cfg for values ApplyDefaults cannot safely fill in,
// such as out-of-range ports or unknown enum strings. This is a plain Go
// pass rather than a struct-tag validator (see DESIGN.md).
func Validate(cfg *Config) error {
	if cfg.Listen.Port <= 0 || cfg.Listen.Port > 65535 {
		return fmt.Errorf("listen.port out of range: %d", cfg.Listen.Port)
	}

	switch cfg.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level invalid: %q", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format invalid: %q", cfg.Logging.Format)
	}

	if cfg.Telemetry.SampleRate < 0 || cfg.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate out of range: %f", cfg.Telemetry.SampleRate)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port out of range: %d", cfg.Metrics.Port)
	}

	seen := make(map[string]bool, len(cfg.Devices))
	for _, d := range cfg.Devices {
		if d.Serial == "" {
			return fmt.Errorf("devices: entry with empty serial")
		}
		if seen[d.Serial] {
			return fmt.Errorf("devices: duplicate serial %q", d.Serial)
		}
		seen[d.Serial] = true
	}

	return nil
}
