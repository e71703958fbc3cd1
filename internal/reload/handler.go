package reload

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/flemzord/pluginhost/internal/config"
	"github.com/flemzord/pluginhost/internal/core"
)

// Handler re-reads the configuration file and hands the new module blocks
// to the running modules. Reloads are serialised, and a file whose content
// has not changed since the last successful reload is skipped.
type Handler struct {
	app    *core.App
	logger *slog.Logger

	mu   sync.Mutex
	last [sha256.Size]byte
}

// NewHandler creates a reload handler for app.
func NewHandler(app *core.App, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{app: app, logger: logger.With("component", "reload")}
}

// HandleReload loads and validates the configuration at path, then reloads
// the modules.
func (h *Handler) HandleReload(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	digest := sha256.Sum256(raw)
	if digest == h.last {
		h.logger.Debug("configuration unchanged, nothing to reload", "path", path)
		return nil
	}

	cfg, err := config.Parse(raw)
	if err != nil {
		return fmt.Errorf("reload: %s: %w", path, err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("reload: %s: %w", path, err)
	}
	if err := h.apply(ctx, cfg); err != nil {
		return err
	}
	h.last = digest
	return nil
}

// HandleReloadFromConfig reloads the modules from a validated configuration.
func (h *Handler) HandleReloadFromConfig(ctx context.Context, cfg *config.Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.apply(ctx, cfg)
}

func (h *Handler) apply(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	// The module list is fixed at startup.
	var loaded []string
	for _, st := range h.app.Status() {
		loaded = append(loaded, string(st.ID))
	}
	wanted := config.Resolve(cfg)
	slices.Sort(loaded)
	slices.Sort(wanted)
	if !slices.Equal(loaded, wanted) {
		h.logger.Warn("module list changed, restart the host to apply it",
			"running", loaded,
			"configured", wanted,
		)
	}

	if err := h.app.ReloadModules(cfg.Modules); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	h.logger.Info("configuration reloaded")
	return nil
}
