// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/pluginhost/internal/cron"
	"github.com/flemzord/pluginhost/internal/schedule"
)

// MockTask is a configurable test double for cron.Task.
type MockTask struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

// Compile-time interface check.
var _ cron.Task = (*MockTask)(nil)

// Name implements cron.Task.
func (m *MockTask) Name() string { return m.NameVal }

// Schedule implements cron.Task.
func (m *MockTask) Schedule() string { return m.ScheduleVal }

// Run implements cron.Task and increments the call counter.
func (m *MockTask) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockTask) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns the time of the last Run call.
func (m *MockTask) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// Jobs is a mutable cron.JobSource.
type Jobs struct {
	mu   sync.Mutex
	jobs []schedule.Job
}

// Compile-time interface check.
var _ cron.JobSource = (*Jobs)(nil)

// NewJobs returns a source holding jobs.
func NewJobs(jobs ...schedule.Job) *Jobs {
	return &Jobs{jobs: jobs}
}

// CronJobs implements cron.JobSource.
func (j *Jobs) CronJobs() []schedule.Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.jobs)
}

// Set replaces the jobs.
func (j *Jobs) Set(jobs ...schedule.Job) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs = jobs
}

// Registrar records the handshake calls of a runner.
type Registrar struct {
	// Ack, if set, is returned by RegisterJob instead of "ok".
	Ack string

	mu         sync.Mutex
	registered []string
	terminated []string
	requests   []string
}

// Compile-time interface check.
var _ cron.Registrar = (*Registrar)(nil)

// RegisterJob implements cron.Registrar.
func (r *Registrar) RegisterJob(_ context.Context, id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, id)
	if r.Ack != "" {
		return r.Ack
	}
	return cron.AckOK
}

// RegisterTermination implements cron.Registrar.
func (r *Registrar) RegisterTermination(_ context.Context, id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminated = append(r.terminated, id)
	return cron.AckOK
}

// TerminationRequests implements cron.Registrar.
func (r *Registrar) TerminationRequests(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.requests), nil
}

// RequestTermination flags id for termination.
func (r *Registrar) RequestTermination(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, id)
}

// Registered returns the ids passed to RegisterJob.
func (r *Registrar) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.registered)
}

// Terminated returns the ids passed to RegisterTermination.
func (r *Registrar) Terminated() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.terminated)
}
