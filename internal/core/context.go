// Package core is the module system of the plugin host: a registry of
// module constructors, the shared AppContext through which modules find
// their configuration and each other's services, and the App that drives
// them through their lifecycle.
package core

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// AppContext is handed to modules when they are provisioned and reloaded.
// Contexts derived from the same root share one service table.
type AppContext struct {
	// Logger is scoped to the module the context was made for.
	Logger *slog.Logger
	// DataDir holds host-owned state.
	DataDir string

	root     *slog.Logger
	configs  map[string]yaml.Node
	services *services
}

type services struct {
	mu     sync.RWMutex
	byName map[string]any
}

// NewAppContext returns a root context. A nil logger means slog.Default.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:   logger,
		DataDir:  dataDir,
		root:     logger,
		services: &services{byName: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy carrying the per-module configuration
// blocks, keyed by module ID.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.configs = configs
	return &cp
}

// ForModule returns a copy whose logger is tagged with the module ID.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.root.With("module", string(id))
	return &cp
}

// ModuleConfig returns the configuration block of a module.
func (ctx *AppContext) ModuleConfig(id ModuleID) (yaml.Node, bool) {
	node, ok := ctx.configs[string(id)]
	return node, ok
}

// RegisterService publishes svc under name, replacing any earlier value.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.byName[name] = svc
}

// Service looks up a service by name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.byName[name]
	return svc, ok
}

// ServiceNames lists the registered services, sorted.
func (ctx *AppContext) ServiceNames() []string {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	names := make([]string, 0, len(ctx.services.byName))
	for name := range ctx.services.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ServiceAs looks up a service and asserts its type. A service of another
// type is reported as missing.
func ServiceAs[T any](ctx *AppContext, name string) (T, bool) {
	svc, ok := ctx.Service(name)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := svc.(T)
	return typed, ok
}

// LoadModule builds the module registered as id and takes it through
// Configure, Provision and Validate, skipping the interfaces it does not
// implement. Configure is only called when the module has a block in the
// configuration.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := LookupModule(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}
	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, ok := ctx.configs[id]; ok {
			if err := c.Configure(&node); err != nil {
				return nil, moduleErr(info.ID, PhaseConfigure, err)
			}
		}
	}
	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, moduleErr(info.ID, PhaseProvision, err)
		}
	}
	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, moduleErr(info.ID, PhaseValidate, err)
		}
	}
	return mod, nil
}
