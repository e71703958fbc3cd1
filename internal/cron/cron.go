// Package cron runs the plugin's scheduled commands. A Runner fires the
// commands whose time has come and reaps their processes, announcing each
// one to the job registry through a Registrar. A Scheduler runs the
// periodic housekeeping tasks that keep the runner's window current.
package cron

import "context"

// Task is a periodic housekeeping task run by a Scheduler.
type Task interface {
	// Name must be unique within a Scheduler.
	Name() string
	// Schedule is a five-field expression or a descriptor such as "@every 1m".
	Schedule() string
	Run(ctx context.Context) error
}
