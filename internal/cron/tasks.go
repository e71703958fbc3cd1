package cron

import (
	"context"
	"fmt"
	"log/slog"
)

// WindowRecomputeTask rebuilds the runner's schedule window so that
// candidates for the coming hour are always present.
type WindowRecomputeTask struct {
	Runner       *Runner
	ScheduleExpr string // empty = default "@every 1m"
}

// Compile-time interface check.
var _ Task = (*WindowRecomputeTask)(nil)

// Name implements Task.
func (t *WindowRecomputeTask) Name() string { return "window_recompute" }

// Schedule implements Task.
func (t *WindowRecomputeTask) Schedule() string {
	if t.ScheduleExpr != "" {
		return t.ScheduleExpr
	}
	return "@every 1m"
}

// Run implements Task.
func (t *WindowRecomputeTask) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: window recompute cancelled: %w", ctx.Err())
	}
	t.Runner.Recompute()
	return nil
}

// ConfigCheckTask compares the plugin configuration on disk with the one
// in effect and reloads it when it changed.
type ConfigCheckTask struct {
	Source       ConfigSource
	Runner       *Runner
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "@every 1m"
}

// ConfigSource is the plugin configuration as seen by ConfigCheckTask.
type ConfigSource interface {
	// ReloadIfChanged reloads the configuration when the file changed and
	// reports whether it did.
	ReloadIfChanged() (bool, error)
}

// Compile-time interface check.
var _ Task = (*ConfigCheckTask)(nil)

// Name implements Task.
func (t *ConfigCheckTask) Name() string { return "config_check" }

// Schedule implements Task.
func (t *ConfigCheckTask) Schedule() string {
	if t.ScheduleExpr != "" {
		return t.ScheduleExpr
	}
	return "@every 1m"
}

// Run reloads a changed configuration and recomputes the window from it.
func (t *ConfigCheckTask) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: config check cancelled: %w", ctx.Err())
	}
	changed, err := t.Source.ReloadIfChanged()
	if err != nil {
		return fmt.Errorf("cron: reloading plugin configuration: %w", err)
	}
	if changed {
		if t.Logger != nil {
			t.Logger.Info("cron: plugin configuration changed, recomputing window")
		}
		if t.Runner != nil {
			t.Runner.Recompute()
		}
	}
	return nil
}
