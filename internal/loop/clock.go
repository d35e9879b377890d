package loop

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped it
	// before it ran.
	Stop() bool
}

// Clock schedules callbacks. Implementations run callbacks on the session loop.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// realTimer guards against a fire that was already posted to the loop when
// Stop was called.
type realTimer struct {
	t       *time.Timer
	stopped atomic.Bool
}

func (r *realTimer) Stop() bool {
	r.stopped.Store(true)
	return r.t.Stop()
}

// LoopClock is the wall clock with callbacks delivered through a Loop.
type LoopClock struct {
	loop *Loop
}

// NewClock returns a wall clock that posts timer callbacks to l.
func NewClock(l *Loop) *LoopClock {
	return &LoopClock{loop: l}
}

func (c *LoopClock) Now() time.Time { return time.Now() }

func (c *LoopClock) AfterFunc(d time.Duration, fn func()) Timer {
	rt := &realTimer{}
	rt.t = time.AfterFunc(d, func() {
		_ = c.loop.Post(func() {
			if rt.stopped.Load() {
				return
			}
			fn()
		})
	})
	return rt
}

// FakeClock is a manually advanced clock for tests. Callbacks run
// synchronously inside Advance, in deadline order.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *FakeClock
	at    time.Time
	seq   int
	fn    func()
}

// NewFakeClock starts a fake clock at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves time forward by d, firing every timer that comes due,
// including timers armed by callbacks along the way.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at.Before(c.timers[j].at)
		})
		if len(c.timers) == 0 || c.timers[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.timers[0]
		c.timers = c.timers[1:]
		c.now = next.at
		c.mu.Unlock()

		next.fn()
	}
}
