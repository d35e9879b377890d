// Package autosave decides when the document is persisted. One Scheduler owns
// both triggers: a fixed interval and a debounce re-armed by local input.
// At most one save is in flight; triggers that fire meanwhile collapse into a
// single follow-up save once the running one completes.
package autosave

import (
	"fmt"
	"time"

	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/loop"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultDebounce = 5 * time.Second
)

// Trigger names what made a save due.
type Trigger int

const (
	TriggerInterval Trigger = iota
	TriggerDebounce
	TriggerManual
	TriggerFollowUp
)

func (t Trigger) String() string {
	switch t {
	case TriggerInterval:
		return "interval"
	case TriggerDebounce:
		return "debounce"
	case TriggerManual:
		return "manual"
	case TriggerFollowUp:
		return "follow-up"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// SaveFunc starts a save and must call done exactly once, on the loop, when
// the save has finished.
type SaveFunc func(trigger Trigger, done func(error))

// Config holds the two trigger periods.
type Config struct {
	Interval time.Duration
	Debounce time.Duration
}

// Scheduler is not safe for concurrent use; all methods run on the session loop.
type Scheduler struct {
	clock loop.Clock
	cfg   Config
	save  SaveFunc

	running  bool
	interval loop.Timer
	debounce loop.Timer

	inFlight bool
	pending  bool
	saves    map[Trigger]int
}

// New creates a stopped scheduler. Non-positive periods fall back to the defaults.
func New(clock loop.Clock, cfg Config, save SaveFunc) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Scheduler{
		clock: clock,
		cfg:   cfg,
		save:  save,
		saves: make(map[Trigger]int),
	}
}

// Start arms the interval trigger. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	if s.running {
		return
	}
	s.running = true
	s.armInterval()
	logger.DebugTagf("autosave", "armed: interval %v, debounce %v", s.cfg.Interval, s.cfg.Debounce)
}

// Running reports whether Start has been called and Stop has not.
func (s *Scheduler) Running() bool {
	return s.running
}

// Stop cancels both triggers. A save already in flight still completes.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.pending = false
	if s.interval != nil {
		s.interval.Stop()
		s.interval = nil
	}
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	logger.DebugTagf("autosave", "stopped")
}

func (s *Scheduler) armInterval() {
	s.interval = s.clock.AfterFunc(s.cfg.Interval, func() {
		if !s.running {
			return
		}
		s.armInterval()
		s.due(TriggerInterval)
	})
}

// Touch records local input and re-arms the debounce trigger.
func (s *Scheduler) Touch() {
	if !s.running {
		return
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = s.clock.AfterFunc(s.cfg.Debounce, func() {
		s.debounce = nil
		if s.running {
			s.due(TriggerDebounce)
		}
	})
}

// SaveNow requests an immediate save, subject to the in-flight rule.
func (s *Scheduler) SaveNow() {
	s.due(TriggerManual)
}

// InFlight reports whether a save is running.
func (s *Scheduler) InFlight() bool {
	return s.inFlight
}

// Saves returns how many saves each trigger has started.
func (s *Scheduler) Saves(t Trigger) int {
	return s.saves[t]
}

func (s *Scheduler) due(t Trigger) {
	if s.inFlight {
		logger.DebugTagf("autosave", "%s save due while another is running; coalescing", t)
		s.pending = true
		return
	}
	s.inFlight = true
	s.saves[t]++
	logger.DebugTagf("autosave", "starting %s save", t)
	s.save(t, s.complete)
}

func (s *Scheduler) complete(err error) {
	s.inFlight = false
	if err != nil {
		logger.WarnTagf("autosave", "save failed, retrying on next trigger: %v", err)
	}
	if s.pending {
		s.pending = false
		s.due(TriggerFollowUp)
	}
}
