package gateway

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/pluginhost/internal/execution"
	"github.com/flemzord/pluginhost/internal/host"
	"github.com/flemzord/pluginhost/internal/job"
)

// conflictMessage is the 412 body shown to whoever tried to save.
const conflictMessage = "This document has been updated elsewhere. Please save your changes externally and try again."

// handleGetSettings returns the active plugin configuration with its
// checksum as entity tag.
func (g *Gateway) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, etag, err := g.host.ReadSettings()
		if err != nil {
			g.logger.Error("cannot read plugin configuration", "error", err)
			http.Error(w, "cannot read plugin configuration", http.StatusInternalServerError)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(data)
	}
}

// handlePutSettings replaces the plugin configuration. The If-Match header
// must carry the entity tag last read.
func (g *Gateway) handlePutSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		err = g.host.WriteSettings(r.Context(), r.Header.Get("If-Match"), data)
		switch {
		case err == nil:
			g.logger.Info("plugin configuration replaced", "plugin", g.host.PluginName())
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, host.ErrPreconditionFailed):
			http.Error(w, conflictMessage, http.StatusPreconditionFailed)
		case errors.Is(err, host.ErrInvalidSettings):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			g.logger.Error("cannot save plugin configuration", "error", err)
			http.Error(w, "cannot save plugin configuration", http.StatusInternalServerError)
		}
	}
}

type historyJSON struct {
	Checksum   string    `json:"checksum"`
	Kind       string    `json:"kind"`
	RecordedAt time.Time `json:"recorded_at"`
}

// handleSettingsHistory lists recorded configurations, newest first.
// ?limit=N bounds the list; the default is 20.
func (g *Gateway) handleSettingsHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		entries, err := g.host.History(r.Context(), limit)
		if err != nil {
			g.logger.Error("cannot list configuration history", "error", err)
			writeError(w, http.StatusInternalServerError, "cannot list configuration history")
			return
		}
		out := make([]historyJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, historyJSON{Checksum: e.Checksum, Kind: string(e.Kind), RecordedAt: e.RecordedAt})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleConfiguration describes the actions for the platform's menus.
func (g *Gateway) handleConfiguration() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		catalog := g.host.Catalog()
		if catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "no plugin configuration loaded")
			return
		}
		writeJSON(w, http.StatusOK, catalog.Configuration())
	}
}

type jobsResponse struct {
	Jobs        []job.Info `json:"jobs"`
	CronRunning int        `json:"cron_running"`
}

func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, jobsResponse{
			Jobs:        g.host.Registry().Snapshot(),
			CronRunning: g.host.CronTable().Len(),
		})
	}
}

// jobID extracts the {id} parameter. Interactive job ids are integers.
func jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		writeError(w, http.StatusBadRequest, "job id must be an integer")
		return "", false
	}
	return id, true
}

func (g *Gateway) findJob(id string) (job.Info, bool) {
	for _, info := range g.host.Registry().Snapshot() {
		if info.ID == id {
			return info, true
		}
	}
	return job.Info{}, false
}

func (g *Gateway) handleGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}
		info, found := g.findJob(id)
		if !found {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// handleDeleteJob terminates a running job. A job that already exited is
// left to the reaper.
func (g *Gateway) handleDeleteJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}
		if _, found := g.findJob(id); !found {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		if _, outcome := g.host.Engine().Terminate(id); outcome == execution.NotFound {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
