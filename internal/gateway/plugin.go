package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/command"
	"github.com/flemzord/pluginhost/internal/cron"
	"github.com/flemzord/pluginhost/internal/execution"
)

type actionRequest struct {
	Name    string         `json:"name"`
	Context map[string]any `json:"context"`
}

type jobRequest struct {
	JobID  json.RawMessage `json:"job_id"`
	Retval any             `json:"retval"`
}

// id accepts the job id as a JSON string or number.
func (r jobRequest) id() string {
	var s string
	if err := json.Unmarshal(r.JobID, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r.JobID))
}

func (g *Gateway) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// handleAction runs an action. The request path decides whether the action
// runs normally or in validation mode: a path that is some action's validate
// endpoint runs it with the validation flag set.
func (g *Gateway) handleAction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if !g.decode(w, r, &req) {
			return
		}

		catalog := g.host.Catalog()
		if catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "no plugin configuration loaded")
			return
		}
		validate, ok := routeAction(catalog, r.URL.Path, req.Name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no action %q at %s", req.Name, r.URL.Path))
			return
		}

		c, err := command.DecodeContext(req.Context)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		reply, err := g.host.Engine().Execute(r.Context(), req.Name, c, validate)
		if err != nil {
			g.writeExecuteError(w, r, req.Name, err)
			return
		}
		writeReply(w, reply)
	}
}

// routeAction reports whether name is served at path and in which mode.
// The default execute endpoint accepts every action.
func routeAction(catalog *action.Catalog, path, name string) (validate, ok bool) {
	execute, validating := catalog.ByEndpoint(path)
	byName := func(a *action.Action) bool { return a.Name == name }
	switch {
	case slices.ContainsFunc(validating, byName):
		return true, true
	case slices.ContainsFunc(execute, byName):
		return false, true
	case path == action.DefaultEndpoint:
		return false, true
	}
	return false, false
}

func (g *Gateway) writeExecuteError(w http.ResponseWriter, r *http.Request, name string, err error) {
	if r.Context().Err() != nil {
		g.logger.Warn("client went away before the action answered", "action", name)
		return
	}
	var syntaxErr *command.SyntaxError
	switch {
	case errors.Is(err, execution.ErrNoActionName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, action.ErrUnknownAction):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, command.ErrMissingParameter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &syntaxErr):
		g.logger.Error("action command template is invalid", "action", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		g.logger.Error("action failed", "action", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (g *Gateway) handleReturnThis() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if !g.decode(w, r, &req) {
			return
		}
		writeReply(w, g.host.Engine().ReturnThis(req.id(), req.Retval))
	}
}

func (g *Gateway) handleGetUserResponse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if !g.decode(w, r, &req) {
			return
		}
		reply, err := g.host.Engine().GetUserResponse(r.Context(), req.id())
		if err != nil {
			// Only a cancelled request gets here.
			return
		}
		writeReply(w, reply)
	}
}

// handleInteract takes the browser's form. "result" is always passed on as a
// list; "job_id" and "reply_to_user" are consumed here.
func (g *Gateway) handleInteract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
			return
		}

		sub := execution.Submission{
			Selections:  make(map[string]any, len(r.PostForm)),
			ReplyToUser: true,
		}
		for key, values := range r.PostForm {
			switch key {
			case "job_id":
			case "reply_to_user":
				sub.ReplyToUser = parseReplyToUser(values[0])
			case "result":
				sub.Selections[key] = []string{values[0]}
			default:
				sub.Selections[key] = values[0]
			}
		}

		reply, err := g.host.Engine().Interact(r.Context(), r.PostForm.Get("job_id"), sub)
		if err != nil {
			return
		}
		writeReply(w, reply)
	}
}

func parseReplyToUser(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0":
		return false
	}
	return true
}

// handleTerminate reads the bare job id from the body.
func (g *Gateway) handleTerminate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		reply, _ := g.host.Engine().Terminate(strings.TrimSpace(string(raw)))
		writeReply(w, reply)
	}
}

type terminationRequestsResponse struct {
	JobIDs []string `json:"job_ids"`
}

func (g *Gateway) handleTerminationRequests() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ids := g.host.CronTable().TerminationRequests()
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, terminationRequestsResponse{JobIDs: ids})
	}
}

func (g *Gateway) handleRegisterCronJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if !g.decode(w, r, &req) {
			return
		}
		id := req.id()
		if err := g.host.CronTable().Register(id); err != nil {
			g.logger.Error("cannot register cron job", "job_id", id, "error", err)
			writeReply(w, execution.Ack(cron.AckError))
			return
		}
		writeReply(w, execution.Ack(cron.AckOK))
	}
}

// handleRegisterCronTermination is not gated, so cron jobs stopped by
// disabling the plugin are still withdrawn.
func (g *Gateway) handleRegisterCronTermination() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if !g.decode(w, r, &req) {
			return
		}
		id := req.id()
		if err := g.host.CronTable().Unregister(id); err != nil {
			g.logger.Error("cannot withdraw cron job", "job_id", id, "error", err)
			writeReply(w, execution.Ack(cron.AckError))
			return
		}
		writeReply(w, execution.Ack(cron.AckOK))
	}
}
