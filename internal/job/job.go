package job

import (
	"sync"
	"time"
)

// Job is one tracked invocation of an action's command.
type Job struct {
	ID        string
	Action    string
	CreatedAt time.Time

	proc    Process
	mailbox *Mailbox
	cleanup func()

	mu       sync.Mutex
	state    State
	removeAt time.Time

	gone        chan struct{}
	goneOnce    sync.Once
	releaseOnce sync.Once
}

// Mailbox returns the job's interaction mailbox.
func (j *Job) Mailbox() *Mailbox { return j.mailbox }

// Gone is closed once the job leaves the running set, because its process
// exited or it was terminated.
func (j *Job) Gone() <-chan struct{} { return j.gone }

// IsGone reports whether Gone is closed.
func (j *Job) IsGone() bool {
	select {
	case <-j.gone:
		return true
	default:
		return false
	}
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Advance moves the job to s. Transitions out of a terminal state are ignored.
func (j *Job) Advance(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = s
}

// RemoveAt returns the removal deadline, or the zero time while running.
func (j *Job) RemoveAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.removeAt
}

// stamp records the final state and removal deadline. The first stamp wins.
func (j *Job) stamp(final State, removeAt time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.state.Terminal() {
		j.state = final
	}
	if j.removeAt.IsZero() {
		j.removeAt = removeAt
	}
}

func (j *Job) closeGone() {
	j.goneOnce.Do(func() { close(j.gone) })
}

// release runs the cleanup callback at most once.
func (j *Job) release() bool {
	released := false
	j.releaseOnce.Do(func() {
		released = true
		if j.cleanup != nil {
			j.cleanup()
		}
	})
	return released
}

// Info is a point-in-time view of a job.
type Info struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	State     string    `json:"state"`
	Pid       int       `json:"pid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	RemoveAt  time.Time `json:"remove_at,omitzero"`
}

func (j *Job) info() Info {
	j.mu.Lock()
	defer j.mu.Unlock()
	info := Info{
		ID:        j.ID,
		Action:    j.Action,
		State:     j.state.String(),
		CreatedAt: j.CreatedAt,
		RemoveAt:  j.removeAt,
	}
	if j.proc != nil {
		info.Pid = j.proc.Pid()
	}
	return info
}
