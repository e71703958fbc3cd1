package cron

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/shlex"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/pluginhost/internal/job"
	"github.com/flemzord/pluginhost/internal/schedule"
)

const (
	defaultTickInterval      = 100 * time.Millisecond
	defaultTerminationPeriod = 2 * time.Second
)

// JobSource supplies the cron jobs currently configured.
type JobSource interface {
	CronJobs() []schedule.Job
}

// Observer is notified when the runner fires or reaps a cron job.
type Observer interface {
	CronFired(job string, ack string)
	CronReaped(job string)
}

type nopObserver struct{}

func (nopObserver) CronFired(string, string) {}
func (nopObserver) CronReaped(string)        {}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Jobs      JobSource
	Registrar Registrar
	Spawner   job.Spawner
	// Enabled gates firing. Running jobs are still reaped while disabled.
	Enabled func() bool
	Logger  *slog.Logger
	// TickInterval is how often due candidates are checked. Defaults to 100ms.
	TickInterval time.Duration
	// TerminationPeriod is how often termination requests are fetched.
	// Defaults to 2s.
	TerminationPeriod time.Duration
	Observer          Observer
	Now               func() time.Time
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.Spawner == nil {
		c.Spawner = &job.ExecSpawner{}
	}
	if c.Enabled == nil {
		c.Enabled = func() bool { return true }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.TerminationPeriod <= 0 {
		c.TerminationPeriod = defaultTerminationPeriod
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type cronProcess struct {
	job  string
	proc job.Process
}

// Runner fires cron jobs from the schedule window and reaps their
// processes. The window is recomputed by Recompute, which the plugin.cron
// module calls periodically and whenever the configuration changes.
type Runner struct {
	cfg    RunnerConfig
	logger *slog.Logger
	tracer trace.Tracer

	mu        sync.Mutex
	window    schedule.Window
	active    bool
	lastCheck time.Time
	running   map[string]cronProcess
	// ranOnStart is set once the run-on-start jobs have run.
	ranOnStart bool

	stop      chan struct{}
	stopped   chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewRunner creates a runner. Jobs and Registrar are required.
func NewRunner(cfg RunnerConfig) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "cron"),
		tracer:  otel.Tracer("github.com/flemzord/pluginhost/internal/cron"),
		running: make(map[string]cronProcess),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start launches the tick loop. Only the first call has an effect.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.started.Store(true)
		go r.loop(ctx)
	})
}

// Stop ends the tick loop and waits for it. Spawned processes keep running.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.started.Load() {
		<-r.stopped
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.stopped)
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one cycle: activate or deactivate, fire due candidates, then
// reap finished or terminated processes. Jobs marked to run on start run on
// the first activation only. A panic is logged and the cycle
// abandoned.
func (r *Runner) Tick(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("cron tick panicked", "panic", p)
		}
	}()

	now := r.cfg.Now()
	jobs := r.cfg.Jobs.CronJobs()
	active := r.cfg.Enabled() && len(jobs) > 0

	r.mu.Lock()
	var (
		due      []schedule.Candidate
		onStart  []schedule.Job
		becameOn = active && !r.active
	)
	var expired int
	if becameOn {
		r.window.Recompute(jobs, now)
		// Candidates missed while inactive are not caught up.
		expired = r.window.Expire(now.Add(-r.cfg.TickInterval))
		if !r.ranOnStart {
			r.ranOnStart = true
			for _, j := range jobs {
				if j.RunOnStart {
					onStart = append(onStart, j)
				}
			}
		}
	}
	r.active = active
	if active {
		due = r.window.Due(now)
	}
	r.mu.Unlock()

	if becameOn {
		r.logger.Info("cron loop active", "jobs", len(jobs), "expired", expired)
	}
	for _, j := range onStart {
		if j.Command == "" {
			r.logger.Error("cron job runs on start but has no command", "job", j.Name)
			continue
		}
		r.logger.Info("running cron job on start", "job", j.Name)
		r.fire(ctx, j.Name, j.Command)
	}
	for _, c := range due {
		r.fire(ctx, c.Job, c.Command)
	}

	r.reap(ctx, now)
}

// Recompute rebuilds the schedule window from the current jobs. While the
// loop is inactive no due candidate is carried forward.
func (r *Runner) Recompute() {
	jobs := r.cfg.Jobs.CronJobs()
	now := r.cfg.Now()

	r.mu.Lock()
	r.window.Recompute(jobs, now)
	if !r.active {
		r.window.Expire(now)
	}
	pending := r.window.Pending()
	r.mu.Unlock()

	r.logger.Debug("cron window recomputed", "jobs", len(jobs), "pending", pending)
}

// Window returns a copy of the current candidates.
func (r *Runner) Window() []schedule.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window.Entries()
}

// Running returns the ids of spawned cron processes not yet reaped.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Runner) fire(ctx context.Context, name, cmd string) {
	id := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "cron.fire", trace.WithAttributes(
		attribute.String("cron.job", name),
		attribute.String("job.id", id),
	))
	defer span.End()

	argv, err := shlex.Split(cmd)
	if err != nil || len(argv) == 0 {
		r.logger.Error("cannot split cron command", "job", name, "command", cmd, "error", err)
		return
	}

	ack := r.cfg.Registrar.RegisterJob(ctx, id)
	span.SetAttributes(attribute.String("cron.ack", ack))
	r.cfg.Observer.CronFired(name, ack)
	switch ack {
	case AckOK:
	case AckTimeout:
		r.logger.Warn("cron job registration timed out, running anyway", "job", name, "job_id", id)
	default:
		r.logger.Warn("cron job not registered, skipping", "job", name, "job_id", id, "ack", ack)
		return
	}

	proc, err := r.cfg.Spawner.Spawn(context.WithoutCancel(ctx), argv)
	if err != nil {
		span.RecordError(err)
		r.logger.Error("cannot start cron job", "job", name, "job_id", id, "error", err)
		r.cfg.Registrar.RegisterTermination(ctx, id)
		return
	}

	r.mu.Lock()
	r.running[id] = cronProcess{job: name, proc: proc}
	r.mu.Unlock()
	r.logger.Info("cron job started", "job", name, "job_id", id, "pid", proc.Pid())
}

func (r *Runner) reap(ctx context.Context, now time.Time) {
	var kill map[string]bool
	r.mu.Lock()
	checkTerminations := now.Sub(r.lastCheck) >= r.cfg.TerminationPeriod
	if checkTerminations {
		r.lastCheck = now
	}
	candidates := make(map[string]cronProcess, len(r.running))
	for id, p := range r.running {
		candidates[id] = p
	}
	r.mu.Unlock()

	if len(candidates) == 0 {
		return
	}

	if checkTerminations {
		ids, err := r.cfg.Registrar.TerminationRequests(ctx)
		if err != nil {
			r.logger.Warn("cannot fetch cron termination requests", "error", err)
		}
		kill = make(map[string]bool, len(ids))
		for _, id := range ids {
			kill[id] = true
		}
	}

	for id, p := range candidates {
		exited, err := p.proc.Exited()
		if err != nil {
			r.logger.Error("cannot poll cron job", "job", p.job, "job_id", id, "error", err)
			continue
		}
		if !exited && kill[id] {
			if err := p.proc.Terminate(); err != nil {
				r.logger.Error("cannot terminate cron job", "job", p.job, "job_id", id, "error", err)
				continue
			}
			r.logger.Info("cron job terminated on request", "job", p.job, "job_id", id)
			exited, _ = p.proc.Exited()
		}
		if !exited {
			continue
		}

		r.mu.Lock()
		delete(r.running, id)
		r.mu.Unlock()

		if ack := r.cfg.Registrar.RegisterTermination(ctx, id); ack != AckOK {
			r.logger.Error("cron job termination not acknowledged", "job", p.job, "job_id", id, "ack", ack)
		} else {
			r.logger.Info("cron job finished", "job", p.job, "job_id", id)
		}
		r.cfg.Observer.CronReaped(p.job)
	}
}
