// Package job tracks running interactive jobs, their mailboxes and their
// delayed removal, plus the set of jobs launched by the cron loop.
package job

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const defaultGracePeriod = 20 * time.Second

// Config configures a Registry.
type Config struct {
	// GracePeriod is how long an exited job stays queryable. Defaults to 20s.
	GracePeriod time.Duration
	Spawner     Spawner
	Logger      *slog.Logger
	Now         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaultGracePeriod
	}
	if c.Spawner == nil {
		c.Spawner = &ExecSpawner{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Registry owns every interactive job. A job is either running or pending
// removal, never both.
type Registry struct {
	cfg    Config
	nextID atomic.Uint64

	mu      sync.RWMutex
	running map[string]*Job
	pending map[string]*Job

	cron *CronTable
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg.withDefaults(),
		running: make(map[string]*Job),
		pending: make(map[string]*Job),
		cron:    NewCronTable(),
	}
}

// NextID returns a fresh job identifier. Identifiers are never reused.
func (r *Registry) NextID() string {
	return strconv.FormatUint(r.nextID.Add(1), 10)
}

// Cron returns the table of cron-launched jobs.
func (r *Registry) Cron() *CronTable { return r.cron }

// Start spawns argv and registers it under id. If the spawn fails, cleanup
// runs immediately.
func (r *Registry) Start(ctx context.Context, id, action string, argv []string, cleanup func()) (*Job, error) {
	proc, err := r.cfg.Spawner.Spawn(ctx, argv)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}
	return r.Register(id, action, proc, cleanup)
}

// Register tracks an already-started process under id.
func (r *Registry) Register(id, action string, proc Process, cleanup func()) (*Job, error) {
	j := &Job{
		ID:        id,
		Action:    action,
		CreatedAt: r.cfg.Now(),
		proc:      proc,
		mailbox:   NewMailbox(),
		cleanup:   cleanup,
		state:     StateSpawned,
		gone:      make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	if _, ok := r.pending[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.running[id] = j
	r.cfg.Logger.Debug("job registered", "job_id", id, "action", action)
	return j, nil
}

// Lookup returns a running or pending job.
func (r *Registry) Lookup(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if j, ok := r.running[id]; ok {
		return j, true
	}
	j, ok := r.pending[id]
	return j, ok
}

// IsRunning reports whether id is in the running set.
func (r *Registry) IsRunning(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.running[id]
	return ok
}

// Poll reports the state of a job's process. A running job whose process
// cannot be queried is reported as Running.
func (r *Registry) Poll(id string) PollResult {
	r.mu.RLock()
	j, running := r.running[id]
	_, pending := r.pending[id]
	r.mu.RUnlock()

	switch {
	case running:
		exited, err := j.proc.Exited()
		if err != nil {
			r.cfg.Logger.Error("job: cannot poll process", "job_id", id, "error", err)
			return Running
		}
		if exited {
			return Exited
		}
		return Running
	case pending:
		return Exited
	default:
		return Unknown
	}
}

// Terminate signals a running job and schedules its removal.
func (r *Registry) Terminate(id string) TerminateResult {
	r.mu.RLock()
	j, running := r.running[id]
	_, pending := r.pending[id]
	r.mu.RUnlock()

	if !running {
		if pending {
			return AlreadyExited
		}
		return NotFound
	}

	exited, err := j.proc.Exited()
	if err != nil {
		r.cfg.Logger.Error("job: cannot poll process", "job_id", id, "error", err)
	}
	if exited {
		r.ScheduleRemoval(id, StateCompleted)
		return AlreadyExited
	}
	if err := j.proc.Terminate(); err != nil {
		r.cfg.Logger.Warn("job: terminate failed", "job_id", id, "error", err)
	}
	r.ScheduleRemoval(id, StateTerminated)
	return Terminated
}

// ScheduleRemoval moves a running job to the pending-removal set, stamped
// now + grace period. It is a no-op for a job already pending or unknown.
func (r *Registry) ScheduleRemoval(id string, final State) {
	r.mu.Lock()
	j, ok := r.running[id]
	if ok {
		delete(r.running, id)
		j.stamp(final, r.cfg.Now().Add(r.cfg.GracePeriod))
		r.pending[id] = j
	}
	r.mu.Unlock()

	if ok {
		j.closeGone()
		r.cfg.Logger.Debug("job scheduled for removal", "job_id", id, "state", final.String())
	}
}

// Release frees a job's resources now. A job whose process is still running
// is terminated first. Releasing an absent or already released job is a
// no-op.
func (r *Registry) Release(id string) bool {
	r.mu.Lock()
	j, ok := r.pending[id]
	wasRunning := false
	if !ok {
		j, ok = r.running[id]
		wasRunning = ok
		delete(r.running, id)
	}
	delete(r.pending, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if wasRunning {
		if exited, err := j.proc.Exited(); err != nil || !exited {
			if err := j.proc.Terminate(); err != nil {
				r.cfg.Logger.Warn("job: terminate failed", "job_id", id, "error", err)
			}
		}
	}
	j.stamp(StateTerminated, r.cfg.Now())
	j.closeGone()
	return j.release()
}

// Sweep moves exited processes to pending removal and releases pending jobs
// whose deadline has passed. It reports how many jobs it moved and released.
func (r *Registry) Sweep(now time.Time) (moved, released int) {
	r.mu.RLock()
	candidates := make([]*Job, 0, len(r.running))
	for _, j := range r.running {
		candidates = append(candidates, j)
	}
	r.mu.RUnlock()

	for _, j := range candidates {
		exited, err := j.proc.Exited()
		if err != nil {
			r.cfg.Logger.Error("job: cannot poll process", "job_id", j.ID, "error", err)
			continue
		}
		if !exited {
			continue
		}
		// The job may have been terminated or released concurrently.
		r.mu.Lock()
		cur, ok := r.running[j.ID]
		if ok && cur == j {
			delete(r.running, j.ID)
			j.stamp(StateCompleted, now.Add(r.cfg.GracePeriod))
			r.pending[j.ID] = j
		}
		r.mu.Unlock()
		if !ok || cur != j {
			continue
		}
		moved++
		j.closeGone()
	}

	r.mu.Lock()
	var due []*Job
	for id, j := range r.pending {
		if !j.RemoveAt().After(now) {
			due = append(due, j)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	for _, j := range due {
		if j.release() {
			released++
			r.cfg.Logger.Debug("job released", "job_id", j.ID)
		}
	}
	return moved, released
}

// Snapshot lists every tracked job ordered by creation time.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	jobs := make([]*Job, 0, len(r.running)+len(r.pending))
	for _, j := range r.running {
		jobs = append(jobs, j)
	}
	for _, j := range r.pending {
		jobs = append(jobs, j)
	}
	r.mu.RUnlock()

	out := make([]Info, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.info())
	}
	slices.SortFunc(out, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Counts returns the number of running and pending jobs.
func (r *Registry) Counts() (running, pending int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.running), len(r.pending)
}

// ReleaseAll terminates every running job and frees every job at once,
// without waiting for grace periods. Used on shutdown.
func (r *Registry) ReleaseAll() int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.running)+len(r.pending))
	for id := range r.running {
		ids = append(ids, id)
	}
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if r.Release(id) {
			n++
		}
	}
	return n
}
