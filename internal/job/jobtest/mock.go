// Package jobtest provides test doubles for the job package.
package jobtest

import (
	"context"
	"errors"
	"sync"

	"github.com/flemzord/pluginhost/internal/job"
)

// Process is a controllable job.Process.
type Process struct {
	mu         sync.Mutex
	exited     bool
	pollErr    error
	terminated int
	pid        int
}

// Compile-time interface check.
var _ job.Process = (*Process)(nil)

// NewProcess returns a running fake process.
func NewProcess(pid int) *Process {
	return &Process{pid: pid}
}

// Exited implements job.Process.
func (p *Process) Exited() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pollErr != nil {
		return false, p.pollErr
	}
	return p.exited, nil
}

// Terminate implements job.Process; the fake exits immediately.
func (p *Process) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated++
	p.exited = true
	return nil
}

// Pid implements job.Process.
func (p *Process) Pid() int { return p.pid }

// Exit marks the process as finished.
func (p *Process) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exited = true
}

// FailPolls makes Exited return err until called again with nil.
func (p *Process) FailPolls(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollErr = err
}

// TerminateCount returns how many times Terminate was called.
func (p *Process) TerminateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// Spawner records spawned command lines and hands out fake processes.
type Spawner struct {
	// Err, if set, is returned by Spawn.
	Err error

	mu    sync.Mutex
	argvs [][]string
	procs []*Process
}

// Compile-time interface check.
var _ job.Spawner = (*Spawner)(nil)

// Spawn implements job.Spawner.
func (s *Spawner) Spawn(_ context.Context, argv []string) (job.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if len(argv) == 0 {
		return nil, errors.New("jobtest: empty argv")
	}
	p := NewProcess(1000 + len(s.procs))
	s.argvs = append(s.argvs, append([]string(nil), argv...))
	s.procs = append(s.procs, p)
	return p, nil
}

// Argvs returns every spawned command line.
func (s *Spawner) Argvs() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.argvs))
	copy(out, s.argvs)
	return out
}

// Last returns the most recently spawned process, or nil.
func (s *Spawner) Last() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.procs) == 0 {
		return nil
	}
	return s.procs[len(s.procs)-1]
}

// Count returns the number of spawned processes.
func (s *Spawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}
