package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/pluginhost/internal/core"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status      string `json:"status"` // "ok" or "degraded"
	Plugin      string `json:"plugin"`
	Enabled     bool   `json:"enabled"`
	Uptime      int64  `json:"uptime_seconds"`
	JobsRunning int    `json:"jobs_running"`
	JobsPending int    `json:"jobs_pending"`
	CronRunning int    `json:"cron_running"`
	// Modules maps module IDs to their lifecycle state.
	Modules map[string]string `json:"modules,omitempty"`
}

// handleHealth answers 503 "degraded" when no plugin configuration is
// loaded or a module has failed.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:      "ok",
			Plugin:      g.host.PluginName(),
			Enabled:     g.host.Enabled(),
			Uptime:      int64(time.Since(g.startedAt).Seconds()),
			CronRunning: g.host.CronTable().Len(),
		}
		resp.JobsRunning, resp.JobsPending = g.host.Registry().Counts()

		healthy := g.host.Catalog() != nil
		if g.modules != nil {
			resp.Modules = make(map[string]string)
			for _, st := range g.modules.Status() {
				resp.Modules[string(st.ID)] = st.State.String()
				if st.State == core.StateFailed {
					healthy = false
				}
			}
		}

		code := http.StatusOK
		if !healthy {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
