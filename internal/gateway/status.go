package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/flemzord/pluginhost/internal/status"
)

// handleGetStatus returns "enabled" or "disabled" as plain text.
func (g *Gateway) handleGetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, g.host.Status())
	}
}

// handlePutStatus applies the state in the body. Disabling flags every
// running cron job for termination.
func (g *Gateway) handlePutStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := g.host.SetStatus(string(raw)); err != nil {
			if errors.Is(err, status.ErrInvalidState) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		g.logger.Info("plugin status changed", "status", g.host.Status())
		w.WriteHeader(http.StatusNoContent)
	}
}
