package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flemzord/pluginhost/internal/execution"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.metrics.instrument)

	// Public, never gated.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())

	// Plugin protocol. Everything here answers {"ack": "disabled"} while the
	// plugin is disabled, except the calls the cron loop needs to wind down.
	r.Group(func(r chi.Router) {
		r.Use(g.requireEnabled)
		r.Post("/returnthis/", g.handleReturnThis())
		r.Post("/getuserresponse/", g.handleGetUserResponse())
		r.Post("/interact/", g.handleInteract())
		r.Post("/terminate/", g.handleTerminate())
		r.Post("/registercronjob/", g.handleRegisterCronJob())
		// Per-action endpoints, including the default /execute/ and /validate/.
		r.Post("/*", g.handleAction())
	})
	r.Post("/registercrontermination/", g.handleRegisterCronTermination())
	r.Get("/terminationrequests/", g.handleTerminationRequests())
	r.Post("/terminationrequests/", g.handleTerminationRequests())

	r.Route("/internal", func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(g.requireAdmin)
		}
		r.Get("/status/", g.handleGetStatus())
		r.Put("/status/", g.handlePutStatus())
		r.Get("/settings/file", g.handleGetSettings())
		r.Put("/settings/file", g.handlePutSettings())
		r.Get("/settings/history", g.handleSettingsHistory())
		r.Get("/configuration/", g.handleConfiguration())
		r.Get("/jobs/", g.handleListJobs())
		r.Get("/jobs/{id}", g.handleGetJob())
		r.Delete("/jobs/{id}", g.handleDeleteJob())
	})

	return r
}

// requireEnabled short-circuits with {"ack": "disabled"} while the plugin
// is disabled.
func (g *Gateway) requireEnabled(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.host.Enabled() {
			writeReply(w, execution.Ack("disabled"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeReply sends an engine reply with status 200.
func writeReply(w http.ResponseWriter, reply execution.Reply) {
	body, contentType, err := reply.Encode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
