package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/command"
	"github.com/flemzord/pluginhost/internal/job"
	"github.com/flemzord/pluginhost/internal/redirect"
)

// CloseWindowHTML is the page that tells the browser to close the plugin
// window. Every endpoint degrades to it when the job it names is gone.
const CloseWindowHTML = `<html><script type="text/javascript">window.close()</script></html>`

// ErrNoActionName is returned by Execute when the request names no action.
var ErrNoActionName = errors.New("execution: request did not name an action")

// Reply is an endpoint answer: HTML for the browser, or a JSON document.
type Reply struct {
	HTML string
	// JSON, when non-nil, is encoded instead of HTML.
	JSON any
}

// CloseWindow is the reply that closes the plugin window.
var CloseWindow = Reply{HTML: CloseWindowHTML}

// Ack builds the {"ack": status} JSON reply.
func Ack(status string) Reply {
	return Reply{JSON: map[string]string{"ack": status}}
}

// IsCloseWindow reports whether r is the close-window page.
func (r Reply) IsCloseWindow() bool {
	return r.JSON == nil && r.HTML == CloseWindowHTML
}

// CatalogSource returns the action catalog currently in effect.
type CatalogSource interface {
	Catalog() *action.Catalog
}

// Observer is notified of engine events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ExecutionStarted(action string)
	ExecutionFinished(action string, outcome string)
}

type nopObserver struct{}

func (nopObserver) ExecutionStarted(string)          {}
func (nopObserver) ExecutionFinished(string, string) {}

// Config configures an Engine.
type Config struct {
	Registry   *job.Registry
	Catalog    CatalogSource
	Redirector *redirect.Redirector
	// TempDir holds temp files for list parameters. Empty uses the OS default.
	TempDir  string
	Logger   *slog.Logger
	Observer Observer
}

func (c Config) withDefaults() Config {
	if c.Redirector == nil {
		c.Redirector = redirect.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return c
}

// Engine runs actions and relays values between a job's process and the
// browser through the job's mailbox.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEngine creates an engine. Registry and Catalog are required.
func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "engine"),
		tracer: otel.Tracer("github.com/flemzord/pluginhost/internal/execution"),
	}
}

// Execute starts the named action and waits for the first value its process
// posts for the user. If the process exits without posting anything, the job
// is scheduled for removal and the close-window page is returned.
func (e *Engine) Execute(ctx context.Context, name string, c command.Context, validate bool) (Reply, error) {
	ctx, span := e.tracer.Start(ctx, "execution.execute", trace.WithAttributes(
		attribute.String("action.name", name),
		attribute.Bool("action.validate", validate),
	))
	defer span.End()

	reply, err := e.execute(ctx, span, name, c, validate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return reply, err
}

func (e *Engine) execute(ctx context.Context, span trace.Span, name string, c command.Context, validate bool) (Reply, error) {
	if name == "" {
		return Reply{}, ErrNoActionName
	}
	catalog := e.cfg.Catalog.Catalog()
	if catalog == nil {
		return Reply{}, fmt.Errorf("%w: %q", action.ErrUnknownAction, name)
	}
	act, err := catalog.Lookup(name)
	if err != nil {
		return Reply{}, err
	}

	id := e.cfg.Registry.NextID()
	span.SetAttributes(attribute.String("job.id", id))
	exec := New(act, c, id, validate, e.cfg.TempDir, e.logger)

	argv, err := exec.Argv()
	if err != nil {
		exec.Cleanup()
		return Reply{}, fmt.Errorf("action %q: %w", name, err)
	}

	j, err := e.cfg.Registry.Start(context.WithoutCancel(ctx), id, act.Name, argv, exec.Cleanup)
	if err != nil {
		e.cfg.Observer.ExecutionFinished(act.Name, "spawn_failed")
		return Reply{}, fmt.Errorf("action %q: %w", name, err)
	}
	e.cfg.Observer.ExecutionStarted(act.Name)
	e.logger.Info("job started", "job_id", id, "action", act.Name, "validate", validate)

	v, err := j.Mailbox().Wait(ctx, job.ToUser, j.Gone())
	if errors.Is(err, job.ErrJobGone) {
		e.cfg.Registry.ScheduleRemoval(id, job.StateCompleted)
		e.cfg.Observer.ExecutionFinished(act.Name, "closed")
		return CloseWindow, nil
	}
	if err != nil {
		return Reply{}, err
	}

	if e.cfg.Registry.Poll(id) == job.Exited {
		e.cfg.Registry.ScheduleRemoval(id, job.StateCompleted)
		e.cfg.Observer.ExecutionFinished(act.Name, "completed")
	} else {
		j.Advance(job.StateAwaitingInteraction)
	}
	return e.render(id, v), nil
}

// ReturnThis stores a value from the job's process for the browser.
func (e *Engine) ReturnThis(id string, retval any) Reply {
	j, ok := e.cfg.Registry.Lookup(id)
	if !ok {
		e.logger.Error("returnthis: no interaction with job id", "job_id", id)
		return CloseWindow
	}
	j.Mailbox().Put(job.ToUser, retval)
	return Ack("ok")
}

// GetUserResponse blocks until the browser submits a value for the job's
// process and returns it JSON-encoded. It returns the close-window page when
// the job is unknown or stops running first.
func (e *Engine) GetUserResponse(ctx context.Context, id string) (Reply, error) {
	j, ok := e.cfg.Registry.Lookup(id)
	if !ok || j.IsGone() {
		e.logger.Error("getuserresponse: no running job with id", "job_id", id)
		return CloseWindow, nil
	}

	v, err := j.Mailbox().Wait(ctx, job.ToPlugin, j.Gone())
	if errors.Is(err, job.ErrJobGone) || (err == nil && j.IsGone()) {
		return CloseWindow, nil
	}
	if err != nil {
		return Reply{}, err
	}
	return Reply{JSON: v}, nil
}

// Submission is a form the browser posted to the interaction endpoint.
type Submission struct {
	Selections map[string]any
	// ReplyToUser makes Interact wait for the process's next page.
	ReplyToUser bool
}

// Interact hands a browser submission to the job's process. When a reply is
// requested it waits for the process's next HTML page and returns it rewritten;
// if the job stops first, the close-window page is returned instead.
func (e *Engine) Interact(ctx context.Context, id string, sub Submission) (Reply, error) {
	ctx, span := e.tracer.Start(ctx, "execution.interact", trace.WithAttributes(
		attribute.String("job.id", id),
		attribute.Bool("interact.reply", sub.ReplyToUser),
	))
	defer span.End()

	j, ok := e.cfg.Registry.Lookup(id)
	if !ok || j.IsGone() {
		e.logger.Error("interact: no running job with id", "job_id", id)
		return CloseWindow, nil
	}

	// Clear first so a page posted in answer to this submission survives.
	mb := j.Mailbox()
	mb.Clear(job.ToUser)
	mb.Put(job.ToPlugin, map[string]any{
		"action":     redirect.SubmitAction,
		"selections": sub.Selections,
	})
	j.Advance(job.StateInteracting)

	if !sub.ReplyToUser {
		return Ack("ok"), nil
	}

	// Only an HTML page answers a submission; other values are dropped.
	for {
		v, err := mb.Wait(ctx, job.ToUser, j.Gone())
		if errors.Is(err, job.ErrJobGone) {
			return CloseWindow, nil
		}
		if err != nil {
			span.RecordError(err)
			return Reply{}, err
		}
		if _, ok := v.(string); !ok {
			e.logger.Warn("interact: ignoring a non-html reply", "job_id", id)
			continue
		}
		j.Advance(job.StateAwaitingInteraction)
		return e.render(id, v), nil
	}
}

// TerminateOutcome is what Terminate did with an id.
type TerminateOutcome int

// Terminate outcomes.
const (
	TerminatedJob TerminateOutcome = iota
	AlreadyExited
	CronRequested
	NotFound
)

// Terminate stops an interactive job, or flags a cron job for termination.
func (e *Engine) Terminate(id string) (Reply, TerminateOutcome) {
	switch e.cfg.Registry.Terminate(id) {
	case job.Terminated:
		e.logger.Info("job terminated", "job_id", id)
		return CloseWindow, TerminatedJob
	case job.AlreadyExited:
		e.logger.Warn("termination requested for a job that already exited", "job_id", id)
		return CloseWindow, AlreadyExited
	}

	if e.cfg.Registry.Cron().RequestTermination(id) {
		e.logger.Info("termination requested for cron job", "job_id", id)
		return Ack("termination request sent"), CronRequested
	}
	e.logger.Error("termination requested for unknown job", "job_id", id)
	return CloseWindow, NotFound
}

// render turns a value posted by a process into a reply. Strings are
// treated as HTML and rewritten; anything else is sent as JSON.
func (e *Engine) render(id string, v any) Reply {
	s, ok := v.(string)
	if !ok {
		return Reply{JSON: v}
	}
	out, err := e.cfg.Redirector.Rewrite(s, id)
	if err != nil {
		e.logger.Warn("cannot rewrite job html, sending it as is", "job_id", id, "error", err)
		return Reply{HTML: s}
	}
	return Reply{HTML: out}
}

// Encode renders a reply body and its content type.
func (r Reply) Encode() ([]byte, string, error) {
	if r.JSON == nil {
		return []byte(r.HTML), "text/html; charset=utf-8", nil
	}
	body, err := json.Marshal(r.JSON)
	if err != nil {
		return nil, "", fmt.Errorf("execution: encoding reply: %w", err)
	}
	return body, "application/json", nil
}
