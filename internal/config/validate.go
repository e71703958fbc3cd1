package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/flemzord/pluginhost/internal/core"
)

var logLevels = []string{"", "debug", "info", "warn", "warning", "error"}

// Validate checks a parsed configuration against the compiled-in modules.
// All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("config: "+format, args...))
	}

	switch cfg.Version {
	case "1":
	case "":
		add("version field is required")
	default:
		add("unsupported version %q (supported: \"1\")", cfg.Version)
	}
	if !slices.Contains(logLevels, strings.ToLower(cfg.LogLevel)) {
		add("unknown log_level %q", cfg.LogLevel)
	}
	if len(cfg.Modules) == 0 {
		add("at least one module must be configured")
	}

	order := Resolve(cfg)
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for _, id := range order {
		if _, ok := core.LookupModule(id); !ok {
			add("unknown module %q", id)
			continue
		}
		for _, req := range requirements(id) {
			switch at, configured := position[string(req)]; {
			case !configured:
				add("module %q requires module %q", id, req)
			case at > position[id]:
				// Resolve only leaves a requirement behind on a cycle.
				add("module %q and module %q require each other", id, req)
			}
		}
	}
	return errors.Join(errs...)
}

func requirements(id string) []core.ModuleID {
	info, ok := core.LookupModule(id)
	if !ok {
		return nil
	}
	if dep, ok := info.New().(core.Dependent); ok {
		return dep.Requires()
	}
	return nil
}
