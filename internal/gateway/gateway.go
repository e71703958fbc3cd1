// Package gateway implements the gateway.http module: the HTTP surface the
// platform and plugin processes talk to, plus the /internal administration
// endpoints, health and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/core"
	"github.com/flemzord/pluginhost/internal/execution"
	"github.com/flemzord/pluginhost/internal/history"
	"github.com/flemzord/pluginhost/internal/job"
	"github.com/flemzord/pluginhost/internal/redact"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
	_ core.Dependent    = (*Gateway)(nil)
)

// Host is the plugin.host service as seen by the gateway.
type Host interface {
	PluginName() string
	Catalog() *action.Catalog
	Engine() *execution.Engine
	Registry() *job.Registry
	CronTable() *job.CronTable
	HasCronJobs() bool
	Enabled() bool
	Status() string
	SetStatus(state string) error
	ReadSettings() ([]byte, string, error)
	WriteSettings(ctx context.Context, ifMatch string, data []byte) error
	History(ctx context.Context, limit int) ([]history.Entry, error)
}

// ModuleStatuser reports the lifecycle state of the loaded modules.
type ModuleStatuser interface {
	Status() []core.ModuleStatus
}

// Gateway is the HTTP gateway module.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	host      Host
	modules   ModuleStatuser
	startedAt time.Time
	addr      net.Addr
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Requires implements core.Dependent.
func (g *Gateway) Requires() []core.ModuleID {
	return []core.ModuleID{"plugin.host"}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The metrics service is registered
// here so that modules starting before the gateway can report into it.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()

	ctx.RegisterService("gateway.metrics", g.metrics)

	if r, ok := core.ServiceAs[*redact.Redactor](ctx, "log.redactor"); ok {
		r.AddLiteral(g.config.Auth.BearerToken)
		r.AddLiteral(g.config.Auth.BasicPass)
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves the plugin host from the
// service registry and starts the HTTP server.
func (g *Gateway) Start() error {
	host, ok := core.ServiceAs[Host](g.appCtx, "plugin.host")
	if !ok {
		return errors.New("gateway: plugin.host service not available")
	}
	g.host = host
	if app, ok := core.ServiceAs[ModuleStatuser](g.appCtx, "core.app"); ok {
		g.modules = app
	}
	g.metrics.watchRegistry(host.Registry())
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.buildRouter(),
		ReadTimeout:       g.config.ReadTimeout,
		ReadHeaderTimeout: g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server listens on. Nil before Start.
func (g *Gateway) Addr() net.Addr { return g.addr }

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
