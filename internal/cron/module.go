package cron

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/pluginhost/internal/core"
	"github.com/flemzord/pluginhost/internal/job"
)

func init() {
	core.RegisterModule(&Module{})
}

// Host is the part of the plugin.host service the cron module uses.
type Host interface {
	JobSource
	ConfigSource
	Enabled() bool
	CronTable() *job.CronTable
	Spawner() job.Spawner
	// Subscribe registers fn to run after every configuration change.
	Subscribe(fn func())
}

// Config holds the plugin.cron module configuration.
type Config struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	TerminationPeriod time.Duration `yaml:"termination_check_interval"`
	RecomputeSchedule string        `yaml:"recompute_schedule"`
	ConfigCheck       string        `yaml:"config_check_schedule"`
	// RegistryURL, when set, makes the runner announce jobs over HTTP to the
	// gateway at that address instead of the in-process table.
	RegistryURL string `yaml:"registry_url"`
	Attempts    uint   `yaml:"attempts"`
}

func (c *Config) defaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.TerminationPeriod <= 0 {
		c.TerminationPeriod = defaultTerminationPeriod
	}
	if c.RecomputeSchedule == "" {
		c.RecomputeSchedule = "@every 1m"
	}
	if c.ConfigCheck == "" {
		c.ConfigCheck = "@every 1m"
	}
	if c.Attempts == 0 {
		c.Attempts = 5
	}
}

// Module is the plugin.cron module. It owns the cron Runner and the
// housekeeping Scheduler.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	runner    *Runner
	scheduler *Scheduler
	cancel    context.CancelFunc
	observer  Observer
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "plugin.cron",
		New: func() core.Module { return &Module{} },
	}
}

// Requires implements core.Dependent.
func (m *Module) Requires() []core.ModuleID {
	return []core.ModuleID{"plugin.host"}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.RegistryURL != "" {
		u, err := url.Parse(m.config.RegistryURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("cron: registry_url must be an absolute URL")
		}
	}
	if _, err := taskParser.Parse(m.config.RecomputeSchedule); err != nil {
		return errors.New("cron: invalid recompute_schedule: " + err.Error())
	}
	if _, err := taskParser.Parse(m.config.ConfigCheck); err != nil {
		return errors.New("cron: invalid config_check_schedule: " + err.Error())
	}
	return nil
}

// Start implements core.Starter. The host service is resolved here because
// plugin.host registers it during its own Provision.
func (m *Module) Start() error {
	host, ok := core.ServiceAs[Host](m.appCtx, "plugin.host")
	if !ok {
		return errors.New("cron: plugin.host service not available")
	}
	if obs, ok := core.ServiceAs[Observer](m.appCtx, "gateway.metrics"); ok {
		m.observer = obs
	}

	m.runner = NewRunner(RunnerConfig{
		Jobs:              host,
		Registrar:         m.registrar(host),
		Spawner:           host.Spawner(),
		Enabled:           host.Enabled,
		Logger:            m.logger,
		TickInterval:      m.config.TickInterval,
		TerminationPeriod: m.config.TerminationPeriod,
		Observer:          m.observer,
	})
	host.Subscribe(m.runner.Recompute)

	m.scheduler = NewScheduler(m.logger)
	tasks := []Task{
		&WindowRecomputeTask{Runner: m.runner, ScheduleExpr: m.config.RecomputeSchedule},
		&ConfigCheckTask{Source: host, Logger: m.logger, ScheduleExpr: m.config.ConfigCheck},
	}
	for _, t := range tasks {
		if err := m.scheduler.Add(t); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	if err := m.scheduler.Start(ctx); err != nil {
		cancel()
		return err
	}
	m.runner.Start(ctx)
	m.appCtx.RegisterService("plugin.cron", m.runner)
	return nil
}

// Stop implements core.Stopper. Cron processes already running keep running.
func (m *Module) Stop(ctx context.Context) error {
	if m.runner != nil {
		m.runner.Stop()
	}
	if m.scheduler != nil {
		_ = m.scheduler.Stop(ctx)
	}
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// Reload implements core.Reloader. Changed settings need a restart; the
// window is recomputed either way.
func (m *Module) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig("plugin.cron")
	if !ok {
		return nil
	}
	var next Config
	if err := node.Decode(&next); err != nil {
		return err
	}
	next.defaults()
	if next != m.config {
		m.logger.Warn("cron: configuration changed, restart to apply")
	}
	if m.runner != nil {
		m.runner.Recompute()
	}
	return nil
}

func (m *Module) registrar(host Host) Registrar {
	if m.config.RegistryURL == "" {
		return &LocalRegistrar{Table: host.CronTable(), Enabled: host.Enabled}
	}
	m.logger.Info("cron: announcing jobs over http", "registry_url", m.config.RegistryURL)
	return &HTTPRegistrar{
		BaseURL:  m.config.RegistryURL,
		Client:   &http.Client{Timeout: 2 * time.Second},
		Attempts: m.config.Attempts,
	}
}
