// Package config loads shaperate configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file name looked for in the working
// directory when no path is given.
const DefaultFile = "shaperate.yaml"

// Config is the top-level shaperate configuration.
type Config struct {
	// LogDir is the run log directory. Empty disables persistence entirely:
	// runs still track in memory, they just never hit disk.
	LogDir string `yaml:"log_dir"`

	// Monitor configures the background monitor.
	Monitor MonitorConfig `yaml:"monitor"`

	// MachineName is a friendly name for this machine in run records.
	// Defaults to the hostname.
	MachineName string `yaml:"machine_name"`
}

// MonitorConfig holds the monitor's two periods.
type MonitorConfig struct {
	// UpdateFrequency is the interval between resource-usage samples.
	UpdateFrequency Duration `yaml:"update_frequency"`
	// SaveFrequency is the interval between persists of in-progress records.
	SaveFrequency Duration `yaml:"save_frequency"`
}

// Duration unmarshals either a Go duration string ("500ms") or a bare number
// of seconds (0.5), the latter matching older configuration files.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var asString string
	if err := node.Decode(&asString); err == nil {
		if parsed, err := time.ParseDuration(asString); err == nil {
			*d = Duration(parsed)
			return nil
		}
	}
	var asSeconds float64
	if err := node.Decode(&asSeconds); err == nil {
		*d = Duration(time.Duration(asSeconds * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration %q (want e.g. \"500ms\" or seconds)", node.Value)
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration: no log directory, 500ms update
// frequency, 5s save frequency.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			UpdateFrequency: Duration(500 * time.Millisecond),
			SaveFrequency:   Duration(5 * time.Second),
		},
	}
}

// Load reads and validates a configuration file. Fields left unset in the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Monitor.UpdateFrequency <= 0 {
		return fmt.Errorf("monitor.update_frequency must be positive, got %v", c.Monitor.UpdateFrequency.Std())
	}
	if c.Monitor.SaveFrequency <= 0 {
		return fmt.Errorf("monitor.save_frequency must be positive, got %v", c.Monitor.SaveFrequency.Std())
	}
	return nil
}

// LobbyDir returns the directory holding in-progress run records
// (<log_dir>/lobby), or empty when no log directory is configured.
func (c *Config) LobbyDir() string {
	if c.LogDir == "" {
		return ""
	}
	return filepath.Join(c.LogDir, "lobby")
}
