package core

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// catalog is the process-wide set of module constructors. Modules add
// themselves from init, so it is filled before main runs.
type catalog struct {
	mu   sync.RWMutex
	byID map[ModuleID]ModuleInfo
}

var registered = &catalog{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule adds a module constructor. It panics on a malformed ID, a
// nil constructor or a duplicate, all of which are programming errors.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case !info.ID.Valid():
		panic(fmt.Sprintf("core: module ID %q is not <namespace>.<name>", info.ID))
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registered.mu.Lock()
	defer registered.mu.Unlock()
	if _, dup := registered.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registered.byID[info.ID] = info
}

// LookupModule returns the registration for id.
func LookupModule(id string) (ModuleInfo, bool) {
	registered.mu.RLock()
	defer registered.mu.RUnlock()
	info, ok := registered.byID[ModuleID(id)]
	return info, ok
}

// RegisteredModules lists every registration, sorted by ID.
func RegisteredModules() []ModuleInfo {
	registered.mu.RLock()
	defer registered.mu.RUnlock()
	return slices.SortedFunc(maps.Values(registered.byID), func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

func resetRegistry() {
	registered.mu.Lock()
	defer registered.mu.Unlock()
	clear(registered.byID)
}
