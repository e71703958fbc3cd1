package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// StopTimeout bounds the whole shutdown of an App.
const StopTimeout = 30 * time.Second

// App drives a list of modules through their lifecycle. Modules are started
// in load order and stopped in reverse.
type App struct {
	ctx    *AppContext
	logger *slog.Logger

	mu      sync.Mutex
	modules []*loadedModule
}

type loadedModule struct {
	id     ModuleID
	module Module
	state  State
	err    error
}

// NewApp creates an App and publishes it as the "core.app" service.
func NewApp(ctx *AppContext) *App {
	a := &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
	ctx.RegisterService("core.app", a)
	return a
}

// Context returns the root context.
func (a *App) Context() *AppContext { return a.ctx }

// LoadModules loads ids in order. On failure the modules loaded so far are
// stopped and dropped.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			_ = a.stop(func(*loadedModule) bool { return true })
			a.mu.Lock()
			a.modules = nil
			a.mu.Unlock()
			return err
		}
		a.mu.Lock()
		a.modules = append(a.modules, &loadedModule{id: mod.ModuleInfo().ID, module: mod})
		a.mu.Unlock()
		a.logger.Debug("module loaded", "module", id)
	}
	return nil
}

// Module returns a loaded module.
func (a *App) Module(id string) (Module, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.modules {
		if string(m.id) == id {
			return m.module, true
		}
	}
	return nil, false
}

// Status reports every loaded module in load order.
func (a *App) Status() []ModuleStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ModuleStatus, len(a.modules))
	for i, m := range a.modules {
		out[i] = ModuleStatus{ID: m.id, State: m.state, Err: m.err}
	}
	return out
}

// Start starts the modules implementing Starter. If one fails, those
// already running are stopped and the error is returned.
func (a *App) Start() error {
	a.mu.Lock()
	modules := append([]*loadedModule(nil), a.modules...)
	a.mu.Unlock()

	for _, m := range modules {
		s, ok := m.module.(Starter)
		if !ok {
			a.setState(m, StateRunning, nil)
			continue
		}
		if err := s.Start(); err != nil {
			err = moduleErr(m.id, PhaseStart, err)
			a.setState(m, StateFailed, err)
			a.logger.Error("module failed to start", "module", string(m.id), "error", err)
			_ = a.stop(func(lm *loadedModule) bool { return lm.state == StateRunning })
			return err
		}
		a.setState(m, StateRunning, nil)
		a.logger.Info("module started", "module", string(m.id))
	}
	return nil
}

// Stop stops every running module in reverse order within StopTimeout and
// returns the joined stop errors.
func (a *App) Stop() error {
	return a.stop(func(m *loadedModule) bool { return m.state == StateRunning })
}

func (a *App) stop(selected func(*loadedModule) bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), StopTimeout)
	defer cancel()

	a.mu.Lock()
	modules := append([]*loadedModule(nil), a.modules...)
	a.mu.Unlock()

	var errs []error
	for i := len(modules) - 1; i >= 0; i-- {
		m := modules[i]
		if !selected(m) {
			continue
		}
		var err error
		if s, ok := m.module.(Stopper); ok {
			err = moduleErr(m.id, PhaseStop, s.Stop(ctx))
		}
		if err != nil {
			a.logger.Error("module failed to stop", "module", string(m.id), "error", err)
			errs = append(errs, err)
		}
		a.setState(m, StateStopped, err)
	}
	return errors.Join(errs...)
}

// ReloadModules hands the new configuration blocks to every module
// implementing Reloader. The service table is kept. All modules are tried;
// their errors are joined.
func (a *App) ReloadModules(configs map[string]yaml.Node) error {
	next := a.ctx.WithModuleConfigs(configs)

	a.mu.Lock()
	modules := append([]*loadedModule(nil), a.modules...)
	a.mu.Unlock()

	var errs []error
	for _, m := range modules {
		r, ok := m.module.(Reloader)
		if !ok {
			continue
		}
		if err := r.Reload(next.ForModule(m.id)); err != nil {
			err = moduleErr(m.id, PhaseReload, err)
			a.logger.Error("module failed to reload", "module", string(m.id), "error", err)
			errs = append(errs, err)
			continue
		}
		a.logger.Info("module reloaded", "module", string(m.id))
	}
	return errors.Join(errs...)
}

func (a *App) setState(m *loadedModule, s State, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m.state = s
	m.err = err
}
