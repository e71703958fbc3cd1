package gateway

import "time"

// Config holds HTTP gateway configuration.
type Config struct {
	Bind         string        `yaml:"bind"`
	Auth         AuthConfig    `yaml:"auth"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	// WriteTimeout bounds a whole response. Zero disables it, which the
	// long-polling endpoints need.
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
}
