package core

import (
	"errors"
	"fmt"
)

// ErrUnknownModule is returned when an ID has no registered module.
var ErrUnknownModule = errors.New("unknown module")

// Lifecycle phases, as reported by ModuleError.
const (
	PhaseConfigure = "configure"
	PhaseProvision = "provision"
	PhaseValidate  = "validate"
	PhaseStart     = "start"
	PhaseStop      = "stop"
	PhaseReload    = "reload"
)

// ModuleError wraps a failure of one module in one lifecycle phase.
type ModuleError struct {
	ID    ModuleID
	Phase string
	Err   error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %s: %v", e.ID, e.Phase, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

func moduleErr(id ModuleID, phase string, err error) error {
	if err == nil {
		return nil
	}
	return &ModuleError{ID: id, Phase: phase, Err: err}
}
