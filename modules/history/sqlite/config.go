package sqlite

import (
	"errors"
	"fmt"
)

// Config is the history.sqlite block of the configuration file.
//
//	history.sqlite:
//	  path: /var/lib/pluginhost/history.db
//	  keep: 200
type Config struct {
	// Path defaults to history.db in the data directory.
	Path string `yaml:"path"`
	// WAL journaling, on unless set to false.
	WAL *bool `yaml:"wal"`
	// BusyTimeout in milliseconds.
	BusyTimeout int `yaml:"busy_timeout"`
	// Keep bounds the number of rows; the oldest are pruned after each
	// insert. Zero keeps everything.
	Keep int `yaml:"keep"`
}

const (
	dbFileName         = "history.db"
	defaultBusyTimeout = 5000
)

func (c *Config) defaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) walEnabled() bool { return c.WAL == nil || *c.WAL }

func (c *Config) validate() error {
	var errs []error
	if c.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout))
	}
	if c.Keep < 0 {
		errs = append(errs, fmt.Errorf("sqlite: keep must be non-negative, got %d", c.Keep))
	}
	return errors.Join(errs...)
}
