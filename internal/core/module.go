package core

import (
	"fmt"
	"strings"
)

// ModuleID names a module as "<namespace>.<name>", for example "plugin.host".
// It is also the key of the module's block in the configuration file.
type ModuleID string

// Namespace returns the part before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part after the first dot, or the whole ID when it has no
// namespace.
func (id ModuleID) Name() string {
	if _, name, ok := strings.Cut(string(id), "."); ok {
		return name
	}
	return string(id)
}

// Valid reports whether both the namespace and the name are non-empty.
func (id ModuleID) Valid() bool {
	ns, name, ok := strings.Cut(string(id), ".")
	return ok && ns != "" && name != ""
}

// ModuleInfo is what a module registers: its ID and a constructor.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is implemented by every unit the App manages. The optional
// lifecycle interfaces live in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}

// State is where a loaded module is in its lifecycle.
type State int

// Module states.
const (
	StateLoaded State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ModuleStatus reports one loaded module.
type ModuleStatus struct {
	ID    ModuleID
	State State
	// Err is the last lifecycle error, if any.
	Err error
}
