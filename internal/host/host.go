// Package host implements the plugin.host module. It owns the host storage
// layout, the plugin configuration and its history, the enabled flag, the
// job registry with its reaper, and the execution engine.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/core"
	"github.com/flemzord/pluginhost/internal/execution"
	"github.com/flemzord/pluginhost/internal/history"
	"github.com/flemzord/pluginhost/internal/job"
	"github.com/flemzord/pluginhost/internal/reload"
	"github.com/flemzord/pluginhost/internal/schedule"
	"github.com/flemzord/pluginhost/internal/status"
)

func init() {
	core.RegisterModule(&Host{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Host)(nil)
	_ core.Provisioner  = (*Host)(nil)
	_ core.Validator    = (*Host)(nil)
	_ core.Starter      = (*Host)(nil)
	_ core.Stopper      = (*Host)(nil)
	_ core.Reloader     = (*Host)(nil)

	_ execution.CatalogSource = (*Host)(nil)
)

// Host is the plugin.host module and the "plugin.host" service.
type Host struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	layout  Layout
	spawner job.Spawner

	registry *job.Registry
	reaper   *job.Reaper
	engine   atomic.Pointer[execution.Engine]
	status   *status.Store
	setup    *configurer
	cancel   context.CancelFunc

	// settingsMu serialises reads and writes of the active configuration.
	settingsMu sync.Mutex
	catalog    atomic.Pointer[action.Catalog]
	cronJobs   atomic.Pointer[[]schedule.Job]
	loadedMod  atomic.Int64

	subsMu sync.Mutex
	subs   []func()

	now func() time.Time
}

// ModuleInfo implements core.Module.
func (h *Host) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "plugin.host",
		New: func() core.Module { return &Host{} },
	}
}

// Configure implements core.Configurable.
func (h *Host) Configure(node *yaml.Node) error {
	if err := node.Decode(&h.config); err != nil {
		return fmt.Errorf("host: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (h *Host) Provision(ctx *core.AppContext) error {
	h.config.defaults()
	if h.config.Storage == "" && ctx.DataDir != "" {
		h.config.Storage = filepath.Join(ctx.DataDir, "hoststorage")
	}
	h.appCtx = ctx
	h.logger = ctx.Logger
	if h.now == nil {
		h.now = time.Now
	}
	h.layout = Layout{Root: h.config.Storage}

	if h.spawner == nil {
		h.spawner = &job.ExecSpawner{Dir: h.config.WorkDir, Stdout: os.Stdout, Stderr: os.Stderr}
	}
	h.registry = job.NewRegistry(job.Config{
		GracePeriod: h.config.GracePeriod,
		Spawner:     h.spawner,
		Logger:      h.logger,
		Now:         h.now,
	})
	h.status = status.Open(h.layout.StatusFile(), h.logger)

	ctx.RegisterService("plugin.host", h)
	return nil
}

// Validate implements core.Validator.
func (h *Host) Validate() error {
	return h.config.validate()
}

// Start implements core.Starter. It prepares host storage, reconciles the
// plugin configuration, loads the catalog and starts the reaper.
func (h *Host) Start() error {
	store, ok := core.ServiceAs[history.Store](h.appCtx, "history.store")
	if !ok {
		store = history.NewFileStore(h.layout.HistoryFile())
	}
	h.setup = &configurer{layout: h.layout, history: store, logger: h.logger, now: h.now}

	if err := h.prepare(context.Background()); err != nil {
		return err
	}

	var observer execution.Observer
	if obs, ok := core.ServiceAs[execution.Observer](h.appCtx, "gateway.metrics"); ok {
		observer = obs
	}
	h.engine.Store(execution.NewEngine(execution.Config{
		Registry: h.registry,
		Catalog:  h,
		TempDir:  h.config.TempDir,
		Logger:   h.logger,
		Observer: observer,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.reaper = job.NewReaper(h.registry, job.ReaperConfig{
		Interval: h.config.ReapInterval,
		Logger:   h.logger,
	})
	h.reaper.Start(ctx)

	h.logger.Info("plugin host started",
		"plugin", h.PluginName(),
		"status", h.status.String(),
		"storage", h.layout.Root,
	)
	return nil
}

// prepare creates the storage layout and reconciles the configuration.
// Failures that only affect the plugin disable it rather than stopping the
// host, so the settings endpoints stay reachable.
func (h *Host) prepare(ctx context.Context) error {
	existed, err := h.layout.Ensure()
	if err != nil {
		return err
	}
	if !existed {
		h.logger.Info("new host storage, plugin starts disabled", "path", h.layout.Root)
		h.status.Set(false)
	} else {
		h.status.Refresh()
	}

	outcome, err := h.setup.Setup(ctx, h.config.ShippedConfig)
	if err != nil {
		h.logger.Error("configuration setup failed, disabling plugin", "error", err)
		h.status.Set(false)
	} else {
		h.logger.Info("configuration setup", "outcome", outcome.String())
		if outcome.Disables() {
			h.status.Set(false)
		}
	}

	if _, err := h.loadActive(); err != nil {
		h.logger.Error("cannot load plugin configuration, disabling plugin", "error", err)
		h.status.Set(false)
	}
	return nil
}

// Stop implements core.Stopper. The reaper stops first, then running
// interactive jobs are terminated and every job's resources are freed.
func (h *Host) Stop(_ context.Context) error {
	if h.reaper != nil {
		h.reaper.Stop()
	}
	if h.registry != nil {
		if n := h.registry.ReleaseAll(); n > 0 {
			h.logger.Info("released jobs on shutdown", "jobs", n)
		}
	}
	if h.cancel != nil {
		h.cancel()
	}
	return nil
}

// Reload implements core.Reloader. The host re-reads the enabled flag and
// the active configuration; storage paths need a restart.
func (h *Host) Reload(_ *core.AppContext) error {
	h.status.Refresh()
	_, err := h.ReloadIfChanged()
	return err
}

// PluginName returns the name from the active configuration.
func (h *Host) PluginName() string {
	if c := h.catalog.Load(); c != nil {
		return c.PluginName
	}
	return ""
}

// Catalog implements execution.CatalogSource.
func (h *Host) Catalog() *action.Catalog {
	return h.catalog.Load()
}

// CronJobs returns the cron jobs of the active configuration.
func (h *Host) CronJobs() []schedule.Job {
	if jobs := h.cronJobs.Load(); jobs != nil {
		return *jobs
	}
	return nil
}

// HasCronJobs reports whether the active configuration declares cron jobs.
func (h *Host) HasCronJobs() bool {
	return len(h.CronJobs()) > 0
}

// Engine returns the execution engine. Nil before Start.
func (h *Host) Engine() *execution.Engine { return h.engine.Load() }

// Registry returns the job registry.
func (h *Host) Registry() *job.Registry { return h.registry }

// CronTable returns the cron job table.
func (h *Host) CronTable() *job.CronTable { return h.registry.Cron() }

// Spawner returns the process spawner used for every job.
func (h *Host) Spawner() job.Spawner { return h.spawner }

// Layout returns the host storage layout.
func (h *Host) Layout() Layout { return h.layout }

// Enabled reports whether the plugin is enabled.
func (h *Host) Enabled() bool { return h.status.Enabled() }

// Status returns "enabled" or "disabled".
func (h *Host) Status() string { return h.status.String() }

// SetStatus applies "enabled" or "disabled". Disabling flags every running
// cron job for termination; enabling lets the cron loop pick up the jobs on
// its next tick.
func (h *Host) SetStatus(state string) error {
	enabled, err := h.status.SetState(state)
	if err != nil {
		return err
	}
	if enabled {
		h.logger.Info("plugin enabled", "cron_jobs", len(h.CronJobs()))
		return nil
	}
	n := h.registry.Cron().RequestAll()
	h.logger.Info("plugin disabled", "cron_jobs_stopping", n)
	return nil
}

// Subscribe registers fn to run after every configuration change.
func (h *Host) Subscribe(fn func()) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	h.subs = append(h.subs, fn)
}

func (h *Host) notify() {
	h.subsMu.Lock()
	subs := append([]func(){}, h.subs...)
	h.subsMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// ReloadIfChanged reloads the active configuration when its modification
// time differs from the one last loaded.
func (h *Host) ReloadIfChanged() (bool, error) {
	h.settingsMu.Lock()
	if modTime(h.layout.Active()) == h.loadedMod.Load() {
		h.settingsMu.Unlock()
		return false, nil
	}
	_, err := h.loadActive()
	h.settingsMu.Unlock()
	if err != nil {
		return false, err
	}
	h.logger.Info("plugin configuration reloaded", "path", h.layout.Active())
	h.notify()
	return true, nil
}

// loadActive parses the active configuration and swaps in the catalog and
// cron jobs. On error the previous catalog stays in effect. Callers other
// than Start hold settingsMu.
func (h *Host) loadActive() (*action.Catalog, error) {
	path := h.layout.Active()
	mod := modTime(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}
	c, err := action.Parse(data)
	if err != nil {
		h.loadedMod.Store(mod)
		return nil, fmt.Errorf("host: %s: %w", path, err)
	}
	h.swap(c)
	h.loadedMod.Store(mod)
	return c, nil
}

func (h *Host) swap(c *action.Catalog) {
	jobs, errs := schedule.ParseJobs(&c.CronJobs)
	for _, err := range errs {
		h.logger.Error("invalid cron job", "error", err)
	}
	h.catalog.Store(c)
	h.cronJobs.Store(&jobs)
}

func modTime(path string) int64 {
	return reload.ModTime(path).UnixNano()
}

// History lists recorded configurations, newest first.
func (h *Host) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if h.setup == nil {
		return nil, errors.New("host: not started")
	}
	return h.setup.history.List(ctx, limit)
}
