package loop

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestRunProcessesInOrder(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		if err := l.Post(func() { got <- i }); err != nil {
			t.Fatal(err)
		}
	}
	go l.Run(ctx)

	for want := 1; want <= 3; want++ {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("task %d ran in position %d", v, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}
}

func TestPostAfterStop(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if err := l.Post(func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Post after stop = %v, want ErrStopped", err)
	}
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	l := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	ran := make(chan struct{})
	_ = l.Post(func() { panic("boom") })
	_ = l.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("loop died after a panic")
	}
}

func TestLoopClockPostsToLoop(t *testing.T) {
	l := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	clock := NewClock(l)
	fired := make(chan struct{})
	clock.AfterFunc(5*time.Millisecond, func() { close(fired) })

	stopped := clock.AfterFunc(5*time.Millisecond, func() { t.Error("stopped timer fired") })
	stopped.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestFakeClockOrder(t *testing.T) {
	c := NewFakeClock()
	var order []string
	c.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	c.AfterFunc(100*time.Millisecond, func() {
		order = append(order, "a")
		c.AfterFunc(50*time.Millisecond, func() { order = append(order, "a2") })
	})
	c.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })
	drop := c.AfterFunc(250*time.Millisecond, func() { order = append(order, "dropped") })

	if !drop.Stop() {
		t.Error("Stop on a pending timer should report true")
	}
	c.Advance(250 * time.Millisecond)

	if want := []string{"a", "a2", "b"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if c.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", c.Pending())
	}
	if drop.Stop() {
		t.Error("second Stop should report false")
	}
}

func TestFakeClockNowAdvances(t *testing.T) {
	c := NewFakeClock()
	start := c.Now()
	var at time.Duration
	c.AfterFunc(time.Second, func() { at = c.Now().Sub(start) })
	c.Advance(3 * time.Second)
	if at != time.Second {
		t.Errorf("callback saw now = +%v, want +1s", at)
	}
	if got := c.Now().Sub(start); got != 3*time.Second {
		t.Errorf("Now = +%v, want +3s", got)
	}
}
