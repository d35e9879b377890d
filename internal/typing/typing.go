// Package typing tracks the transient "is typing" badges of collaborators.
package typing

import (
	"time"

	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/loop"
)

// DefaultTimeout is how long a badge lives without a new event from its user.
const DefaultTimeout = 2000 * time.Millisecond

// Badge is one visible indicator.
type Badge struct {
	User  string
	Label string
}

type entry struct {
	Badge
	timer loop.Timer
}

// Manager keeps one badge per user, each with its own expiry timer.
// It is not safe for concurrent use; timers fire on the session loop.
type Manager struct {
	clock    loop.Clock
	timeout  time.Duration
	entries  []*entry
	onChange func()
}

// NewManager creates a manager. A non-positive timeout uses DefaultTimeout.
func NewManager(clock loop.Clock, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{clock: clock, timeout: timeout}
}

// OnChange registers a callback run whenever a badge appears or expires.
func (m *Manager) OnChange(fn func()) {
	m.onChange = fn
}

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

// Label is the text shown for user.
func Label(user string) string {
	return user + " is typing…"
}

func (m *Manager) find(user string) (int, *entry) {
	for i, e := range m.entries {
		if e.User == user {
			return i, e
		}
	}
	return -1, nil
}

// Show displays (or keeps) the badge for user and restarts its expiry timer.
func (m *Manager) Show(user string) {
	_, e := m.find(user)
	created := false
	if e != nil {
		e.timer.Stop()
	} else {
		e = &entry{Badge: Badge{User: user, Label: Label(user)}}
		m.entries = append(m.entries, e)
		created = true
	}
	e.timer = m.clock.AfterFunc(m.timeout, func() { m.expire(e) })
	if created {
		logger.DebugTagf("typing", "badge shown for %s", user)
		m.changed()
	}
}

func (m *Manager) expire(e *entry) {
	for i, other := range m.entries {
		if other == e {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			logger.DebugTagf("typing", "badge for %s expired", e.User)
			m.changed()
			return
		}
	}
}

// Has reports whether user currently has a badge.
func (m *Manager) Has(user string) bool {
	_, e := m.find(user)
	return e != nil
}

// Badges returns the visible badges in the order they appeared.
func (m *Manager) Badges() []Badge {
	out := make([]Badge, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Badge)
	}
	return out
}

// Clear cancels every timer and removes all badges.
func (m *Manager) Clear() {
	for _, e := range m.entries {
		e.timer.Stop()
	}
	m.entries = nil
	m.changed()
}
