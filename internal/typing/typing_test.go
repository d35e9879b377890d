package typing

import (
	"testing"
	"time"

	"github.com/bethropolis/tandem/internal/loop"
)

func TestBadgeExpires(t *testing.T) {
	clock := loop.NewFakeClock()
	m := NewManager(clock, 0)

	m.Show("alice")
	clock.Advance(1999 * time.Millisecond)
	if !m.Has("alice") {
		t.Fatal("badge gone before 2000ms")
	}
	clock.Advance(time.Millisecond)
	if m.Has("alice") {
		t.Fatal("badge still present at 2000ms")
	}
}

func TestRepeatedEventRearms(t *testing.T) {
	clock := loop.NewFakeClock()
	m := NewManager(clock, 2000*time.Millisecond)

	m.Show("alice")
	clock.Advance(1000 * time.Millisecond)
	m.Show("alice")

	clock.Advance(1500 * time.Millisecond) // t=2500
	if !m.Has("alice") {
		t.Fatal("badge should still exist at 2500ms")
	}
	clock.Advance(500 * time.Millisecond) // t=3000
	if m.Has("alice") {
		t.Fatal("badge should be removed by 3000ms")
	}
	if clock.Pending() != 0 {
		t.Errorf("pending timers = %d", clock.Pending())
	}
}

func TestIndependentUsers(t *testing.T) {
	clock := loop.NewFakeClock()
	m := NewManager(clock, 0)

	m.Show("alice")
	clock.Advance(1000 * time.Millisecond)
	m.Show("bob")
	m.Show("alice")
	m.Show("alice")

	badges := m.Badges()
	if len(badges) != 2 || badges[0].User != "alice" || badges[1].User != "bob" {
		t.Fatalf("badges = %+v", badges)
	}
	if badges[0].Label != "alice is typing…" {
		t.Errorf("label = %q", badges[0].Label)
	}

	clock.Advance(2000 * time.Millisecond) // t=3000: both timers armed at 1000ms
	if m.Has("alice") || m.Has("bob") {
		t.Errorf("badges left: %+v", m.Badges())
	}
}

func TestOnChange(t *testing.T) {
	clock := loop.NewFakeClock()
	m := NewManager(clock, 0)
	changes := 0
	m.OnChange(func() { changes++ })

	m.Show("alice")
	m.Show("alice")
	clock.Advance(DefaultTimeout)

	if changes != 2 {
		t.Errorf("changes = %d, want 2 (appear + expire)", changes)
	}
}

func TestClear(t *testing.T) {
	clock := loop.NewFakeClock()
	m := NewManager(clock, 0)
	m.Show("alice")
	m.Show("bob")
	m.Clear()
	if len(m.Badges()) != 0 || clock.Pending() != 0 {
		t.Errorf("badges=%v pending=%d", m.Badges(), clock.Pending())
	}
}
