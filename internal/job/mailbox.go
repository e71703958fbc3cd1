package job

import (
	"context"
	"sync"
)

// Slot selects one side of a job's mailbox.
type Slot int

// Mailbox slots.
const (
	// ToUser carries the script's output for the browser.
	ToUser Slot = iota
	// ToPlugin carries the browser's submission for the script.
	ToPlugin
)

func (s Slot) String() string {
	if s == ToUser {
		return "to_user"
	}
	return "to_plugin"
}

// Mailbox is the two-slot exchange between a job's process and the browser.
// Each slot holds at most one unconsumed value; a newer write replaces it.
// A value is delivered to exactly one Take or Wait.
type Mailbox struct {
	mu      sync.Mutex
	vals    [2]any
	has     [2]bool
	changed chan struct{}
}

// NewMailbox returns a mailbox with both slots empty.
func NewMailbox() *Mailbox {
	return &Mailbox{changed: make(chan struct{})}
}

// Put stores v in slot, replacing any unconsumed value, and wakes waiters.
func (m *Mailbox) Put(slot Slot, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[slot] = v
	m.has[slot] = true
	m.notifyLocked()
}

// Clear empties slot.
func (m *Mailbox) Clear(slot Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[slot] = nil
	m.has[slot] = false
}

// Take consumes the value in slot, if any.
func (m *Mailbox) Take(slot Slot) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok, _ := m.takeLocked(slot)
	return v, ok
}

// Wait blocks until slot holds a value, gone is closed, or ctx is done.
// When gone closes, a value written before the close is still returned;
// otherwise Wait returns ErrJobGone.
func (m *Mailbox) Wait(ctx context.Context, slot Slot, gone <-chan struct{}) (any, error) {
	for {
		m.mu.Lock()
		v, ok, changed := m.takeLocked(slot)
		m.mu.Unlock()
		if ok {
			return v, nil
		}

		select {
		case <-changed:
		case <-gone:
			if v, ok := m.Take(slot); ok {
				return v, nil
			}
			return nil, ErrJobGone
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Mailbox) takeLocked(slot Slot) (any, bool, <-chan struct{}) {
	if !m.has[slot] {
		return nil, false, m.changed
	}
	v := m.vals[slot]
	m.vals[slot] = nil
	m.has[slot] = false
	return v, true, m.changed
}

func (m *Mailbox) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}
