// Package otel implements the telemetry.otel module. It installs a global
// OpenTelemetry tracer provider that exports the execution and cron spans
// over OTLP/HTTP.
package otel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/pluginhost/internal/core"
	"github.com/flemzord/pluginhost/internal/redact"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Config configures the tracer provider.
type Config struct {
	// Endpoint is the collector host:port. Empty uses the exporter default,
	// which honours OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint    string            `yaml:"endpoint"`
	URLPath     string            `yaml:"url_path"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	ServiceName string            `yaml:"service_name"`
	// SampleRatio is the fraction of root spans kept. Defaults to 1.
	SampleRatio *float64 `yaml:"sample_ratio"`
}

func (c *Config) defaults() {
	if c.ServiceName == "" {
		c.ServiceName = "pluginhost"
	}
	if c.SampleRatio == nil {
		one := 1.0
		c.SampleRatio = &one
	}
}

// Module is the telemetry.otel module.
type Module struct {
	config   Config
	logger   *slog.Logger
	provider *sdktrace.TracerProvider

	// exporter replaces the OTLP exporter in tests.
	exporter sdktrace.SpanExporter
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.otel",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("otel: decode config: %w", err)
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	m.config.defaults()
	if r := *m.config.SampleRatio; r < 0 || r > 1 {
		return errors.New("otel: sample_ratio must be between 0 and 1")
	}
	return nil
}

// Provision implements core.Provisioner. The provider is installed before
// any module starts so that start-up spans are exported too.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if r, ok := core.ServiceAs[*redact.Redactor](ctx, "log.redactor"); ok {
		for _, v := range m.config.Headers {
			r.AddLiteral(v)
		}
	}

	exp := m.exporter
	if exp == nil {
		var err error
		exp, err = otlptracehttp.New(context.Background(), m.exporterOptions()...)
		if err != nil {
			return fmt.Errorf("otel: creating exporter: %w", err)
		}
	}

	m.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", m.config.ServiceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*m.config.SampleRatio))),
	)
	otel.SetTracerProvider(m.provider)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		m.logger.Warn("telemetry export failed", "error", err)
	}))

	m.logger.Info("tracing enabled",
		"service", m.config.ServiceName,
		"endpoint", m.config.Endpoint,
		"sample_ratio", *m.config.SampleRatio,
	)
	return nil
}

func (m *Module) exporterOptions() []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	if m.config.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(m.config.Endpoint))
	}
	if m.config.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(m.config.URLPath))
	}
	if m.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(m.config.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(m.config.Headers))
	}
	return opts
}

// Stop implements core.Stopper. Pending spans are flushed.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	if err := m.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel: shutdown: %w", err)
	}
	return nil
}
