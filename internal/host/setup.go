package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/history"
)

// Outcome is what Setup did with the plugin configuration.
type Outcome int

// Setup outcomes. The last four leave the plugin disabled.
const (
	Installed Outcome = iota
	Unchanged
	UpdatedDefault
	KeptCustom
	Restored
	UnknownEdit
	Unrecorded
	MissingShipped
	InvalidShipped
)

var outcomeNames = [...]string{
	Installed:      "installed",
	Unchanged:      "unchanged",
	UpdatedDefault: "updated_default",
	KeptCustom:     "kept_custom",
	Restored:       "restored",
	UnknownEdit:    "unknown_edit",
	Unrecorded:     "unrecorded",
	MissingShipped: "missing_shipped",
	InvalidShipped: "invalid_shipped",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// Disables reports whether the plugin must be disabled after o.
func (o Outcome) Disables() bool { return o >= UnknownEdit }

// configurer installs and records plugin configurations.
type configurer struct {
	layout  Layout
	history history.Store
	logger  *slog.Logger
	now     func() time.Time
}

// Setup reconciles the shipped configuration with the one saved in host
// storage. A first install copies the shipped file and records it as the
// default. A saved file differing from the shipped one is replaced when it
// was a recorded default, kept when it was a recorded custom edit, and
// disables the plugin when the history does not know it.
func (c *configurer) Setup(ctx context.Context, shippedPath string) (Outcome, error) {
	shipped, err := os.ReadFile(shippedPath)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Error("shipped plugin configuration is missing, cannot proceed", "path", shippedPath)
		return MissingShipped, nil
	}
	if err != nil {
		return MissingShipped, fmt.Errorf("host: reading shipped configuration: %w", err)
	}
	if _, err := action.Parse(shipped); err != nil {
		c.logger.Error("shipped plugin configuration is invalid", "path", shippedPath, "error", err)
		return InvalidShipped, nil
	}
	shippedSum := history.Checksum(shipped)

	recorded, err := c.history.List(ctx, 1)
	if err != nil {
		return Unrecorded, err
	}

	saved, err := os.ReadFile(c.layout.Active())
	savedExists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Unrecorded, fmt.Errorf("host: reading saved configuration: %w", err)
	}

	if len(recorded) == 0 {
		if savedExists {
			c.logger.Error("saved plugin configuration has no history; move it aside and restart",
				"path", c.layout.Active(), "history", c.layout.HistoryFile())
			return Unrecorded, nil
		}
		c.logger.Info("first install, recording the shipped configuration as default")
		if err := c.install(ctx, shipped, shippedSum); err != nil {
			return Unrecorded, err
		}
		return Installed, nil
	}

	if !savedExists {
		c.logger.Warn("saved plugin configuration is gone, restoring the shipped one", "path", c.layout.Active())
		if err := c.install(ctx, shipped, shippedSum); err != nil {
			return Unrecorded, err
		}
		return Restored, nil
	}

	savedSum := history.Checksum(saved)
	if savedSum == shippedSum {
		if _, known, err := c.history.Lookup(ctx, shippedSum); err == nil && !known {
			if err := c.record(ctx, shippedSum, history.KindDefault); err != nil {
				return Unrecorded, err
			}
		}
		return Unchanged, nil
	}

	c.logger.Info("saved plugin configuration differs from the shipped one")
	entry, known, err := c.history.Lookup(ctx, savedSum)
	if err != nil {
		return Unrecorded, err
	}
	switch {
	case !known:
		c.logger.Error("saved plugin configuration was edited outside the host, disabling plugin",
			"path", c.layout.Active())
		return UnknownEdit, nil
	case entry.Kind == history.KindDefault:
		if err := c.install(ctx, shipped, shippedSum); err != nil {
			return Unrecorded, err
		}
		c.logger.Info("saved plugin configuration updated to the new default")
		return UpdatedDefault, nil
	default:
		c.logger.Info("customized plugin configuration will continue to be used",
			"recorded_at", entry.RecordedAt)
		return KeptCustom, nil
	}
}

// install makes data the active configuration and records it as default.
func (c *configurer) install(ctx context.Context, data []byte, sum string) error {
	if err := writeFile(c.layout.Active(), data); err != nil {
		return fmt.Errorf("host: installing configuration: %w", err)
	}
	return c.record(ctx, sum, history.KindDefault)
}

// record backs up the active configuration and appends it to the history.
func (c *configurer) record(ctx context.Context, sum string, kind history.Kind) error {
	now := c.now()
	backup := c.layout.Backup(now)
	data, err := os.ReadFile(c.layout.Active())
	if err != nil {
		return fmt.Errorf("host: backing up configuration: %w", err)
	}
	if err := writeFile(backup, data); err != nil {
		return fmt.Errorf("host: backing up configuration: %w", err)
	}
	return c.history.Record(ctx, history.Entry{
		Checksum:   sum,
		Path:       backup,
		Kind:       kind,
		RecordedAt: now,
	})
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
