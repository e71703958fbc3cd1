package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// A module opts into lifecycle phases by implementing the interfaces below.
// LoadModule calls Configure, Provision and Validate in that order; App then
// calls Start, Reload on configuration changes, and Stop in reverse order.

// Configurable modules decode their block of the configuration file.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules build their state and publish services. Services of
// modules loaded later are not visible yet; look them up in Start.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their configuration once provisioned.
type Validator interface {
	Validate() error
}

// Starter modules launch listeners and loops.
type Starter interface {
	Start() error
}

// Stopper modules release what they hold.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Reloader modules apply a changed configuration block while running.
type Reloader interface {
	Reload(ctx *AppContext) error
}

// Dependent modules name modules that must be configured and loaded first.
type Dependent interface {
	Requires() []ModuleID
}
