// Package app provides the shared entry point for the pluginhost binary.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/flemzord/pluginhost/internal/config"
	"github.com/flemzord/pluginhost/internal/core"
	"github.com/flemzord/pluginhost/internal/redact"
	"github.com/flemzord/pluginhost/internal/reload"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides data_dir from the configuration.
	DataDir string

	// LogLevel, when non-nil, overrides log_level from the configuration.
	LogLevel *slog.Level

	// LogOutput defaults to stderr.
	LogOutput io.Writer
}

// instance is a host whose modules are loaded and started.
type instance struct {
	app     *core.App
	logger  *slog.Logger
	cfgPath string
	reload  *reload.Handler
	watcher *reload.Watcher
}

// Run loads configuration, starts all modules, and blocks until a shutdown
// signal is received. SIGHUP and file-change events trigger a live
// configuration reload for modules that implement core.Reloader.
func Run(params RunParams) error {
	inst, err := start(params)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	return inst.serve(context.Background(), sigCh)
}

// start loads the configuration, builds the logger and starts the modules.
func start(params RunParams) (*instance, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level := cfg.Level()
	if params.LogLevel != nil {
		level = *params.LogLevel
	}
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	redactor := redact.New()
	logger := slog.New(redact.NewHandler(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}), redactor))

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDirOrDefault()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("config.path", cfgPath)
	appCtx.RegisterService("log.redactor", redactor)

	ids := config.Resolve(cfg)
	if err := checkModules(ids); err != nil {
		return nil, err
	}
	application := core.NewApp(appCtx)
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}

	handler := reload.NewHandler(application, logger)
	appCtx.RegisterService("reload.handler", handler)

	logger.Info("starting plugin host",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
		"modules", ids,
	)
	if err := application.Start(); err != nil {
		return nil, err
	}

	return &instance{
		app:     application,
		logger:  logger,
		cfgPath: cfgPath,
		reload:  handler,
		watcher: reload.NewWatcher(reload.WatcherConfig{Path: cfgPath}),
	}, nil
}

// serve reloads on SIGHUP or a change of the configuration file and stops
// the modules on any other signal.
func (inst *instance) serve(ctx context.Context, signals <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	inst.watcher.Start(ctx)
	defer inst.watcher.Stop()

	for {
		select {
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				inst.logger.Info("SIGHUP received, reloading configuration")
				inst.reloadConfig(ctx)
				continue
			}
			inst.logger.Info("shutdown signal received", "signal", sig.String())
			return inst.shutdown()
		case evt := <-inst.watcher.Events():
			inst.logger.Info("config file changed, reloading", "path", evt.Path, "event", string(evt.Type))
			inst.reloadConfig(ctx)
		case <-ctx.Done():
			return inst.shutdown()
		}
	}
}

func (inst *instance) reloadConfig(ctx context.Context) {
	if err := inst.reload.HandleReload(ctx, inst.cfgPath); err != nil {
		inst.logger.Error("reload failed", "error", err)
	}
}

func (inst *instance) shutdown() error {
	if err := inst.app.Stop(); err != nil {
		inst.logger.Error("shutdown finished with errors", "error", err)
		return err
	}
	inst.logger.Info("shutdown complete")
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $PLUGINHOST_CONFIG → $XDG_CONFIG_HOME/pluginhost/pluginhost.yaml →
// ~/.config/pluginhost/pluginhost.yaml → ./pluginhost.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if p, ok := os.LookupEnv("PLUGINHOST_CONFIG"); ok && p != "" {
		candidates = append(candidates, p)
	}
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "pluginhost", "pluginhost.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "pluginhost", "pluginhost.yaml"))
	}

	candidates = append(candidates, "pluginhost.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
