package host

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/history"
)

// Settings errors.
var (
	ErrPreconditionFailed = errors.New("host: settings changed since they were read")
	ErrInvalidSettings    = errors.New("host: invalid plugin configuration")
)

// ReadSettings returns the active configuration and its entity tag.
func (h *Host) ReadSettings() ([]byte, string, error) {
	h.settingsMu.Lock()
	defer h.settingsMu.Unlock()

	data, err := os.ReadFile(h.layout.Active())
	if err != nil {
		return nil, "", fmt.Errorf("host: reading settings: %w", err)
	}
	return data, history.Checksum(data), nil
}

// WriteSettings replaces the active configuration when ifMatch is the
// entity tag of the current one. The new file must parse. It is recorded
// as a custom configuration and takes effect immediately.
func (h *Host) WriteSettings(ctx context.Context, ifMatch string, data []byte) error {
	h.settingsMu.Lock()

	current, err := os.ReadFile(h.layout.Active())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		h.settingsMu.Unlock()
		return fmt.Errorf("host: reading settings: %w", err)
	}
	if ifMatch != history.Checksum(current) {
		h.settingsMu.Unlock()
		return ErrPreconditionFailed
	}

	c, err := action.Parse(data)
	if err != nil {
		h.settingsMu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if err := writeFile(h.layout.Active(), data); err != nil {
		h.settingsMu.Unlock()
		return fmt.Errorf("host: writing settings: %w", err)
	}
	if h.setup != nil {
		if err := h.setup.record(ctx, history.Checksum(data), history.KindCustom); err != nil {
			h.logger.Error("cannot record configuration, disabling plugin", "error", err)
			h.status.Set(false)
		}
	}
	h.swap(c)
	h.loadedMod.Store(modTime(h.layout.Active()))
	h.settingsMu.Unlock()

	h.logger.Info("plugin configuration replaced",
		"cron_jobs", len(h.CronJobs()),
		"enabled", h.Enabled(),
	)
	h.notify()
	return nil
}
