package job

import (
	"fmt"
	"slices"
	"sync"
)

type cronState int

const (
	cronRunning cronState = iota
	cronTerminate
)

// CronTable records the jobs the cron loop has announced as running, and
// which of them someone asked to stop. Entries are added and removed only
// through the register/unregister handshake.
type CronTable struct {
	mu   sync.Mutex
	jobs map[string]cronState
}

// NewCronTable creates an empty table.
func NewCronTable() *CronTable {
	return &CronTable{jobs: make(map[string]cronState)}
}

// Register records id as running.
func (t *CronTable) Register(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}
	t.jobs[id] = cronRunning
	return nil
}

// Unregister removes id once the cron loop has reaped its process.
func (t *CronTable) Unregister(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	delete(t.jobs, id)
	return nil
}

// Contains reports whether id is registered.
func (t *CronTable) Contains(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.jobs[id]
	return ok
}

// RequestTermination flags id for termination. It reports false for an
// unregistered id.
func (t *CronTable) RequestTermination(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[id]; !ok {
		return false
	}
	t.jobs[id] = cronTerminate
	return true
}

// RequestAll flags every registered job and returns how many there were.
func (t *CronTable) RequestAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.jobs {
		t.jobs[id] = cronTerminate
	}
	return len(t.jobs)
}

// TerminationRequests lists the ids flagged for termination, sorted.
func (t *CronTable) TerminationRequests() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0)
	for id, st := range t.jobs {
		if st == cronTerminate {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered cron jobs.
func (t *CronTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}
