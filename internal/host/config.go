package host

import (
	"errors"
	"time"
)

// Config holds the plugin.host module configuration.
type Config struct {
	// Storage is the host storage root. Defaults to {DataDir}/hoststorage.
	Storage string `yaml:"storage"`
	// ShippedConfig is the plugin configuration bundled with the plugin.
	ShippedConfig string `yaml:"shipped_config"`
	// WorkDir is the working directory of spawned commands.
	WorkDir string `yaml:"work_dir"`
	// TempDir holds temp files for list parameters. Empty uses the OS default.
	TempDir string `yaml:"temp_dir"`
	// GracePeriod is how long an exited job stays queryable.
	GracePeriod time.Duration `yaml:"grace_period"`
	// ReapInterval is the time between registry sweeps.
	ReapInterval time.Duration `yaml:"reap_interval"`
}

func (c *Config) defaults() {
	if c.ShippedConfig == "" {
		c.ShippedConfig = "ca.control"
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 20 * time.Second
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = 500 * time.Millisecond
	}
}

func (c *Config) validate() error {
	if c.Storage == "" {
		return errors.New("host: storage is required")
	}
	if c.ReapInterval > c.GracePeriod {
		return errors.New("host: reap_interval must not exceed grace_period")
	}
	return nil
}
