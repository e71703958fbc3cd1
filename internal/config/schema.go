// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for the plugin host.
package config

import (
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level host configuration.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `yaml:"log_level,omitempty"`

	// DataDir holds host-owned state (history database, tracing buffers).
	DataDir string `yaml:"data_dir,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "plugin.host").
	Modules map[string]yaml.Node `yaml:"modules"`
}

const defaultDataDir = "/var/lib/pluginhost"

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DataDirOrDefault returns DataDir, falling back to the default location.
func (c *Config) DataDirOrDefault() string {
	if c.DataDir == "" {
		return defaultDataDir
	}
	return c.DataDir
}
