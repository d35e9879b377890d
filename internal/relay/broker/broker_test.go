package broker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscription) []byte {
	t.Helper()
	select {
	case p, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed")
		}
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return nil
}

func TestLocalFanOut(t *testing.T) {
	ctx := context.Background()
	b := NewLocal()
	defer b.Close()

	a1, _ := b.Subscribe(ctx, "1")
	a2, _ := b.Subscribe(ctx, "1")
	other, _ := b.Subscribe(ctx, "2")

	if err := b.Publish(ctx, "1", []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := string(receive(t, a1)); got != "hello" {
		t.Errorf("a1 got %q", got)
	}
	if got := string(receive(t, a2)); got != "hello" {
		t.Errorf("a2 got %q", got)
	}
	select {
	case p := <-other.C():
		t.Errorf("other document received %q", p)
	default:
	}
}

func TestLocalUnsubscribe(t *testing.T) {
	ctx := context.Background()
	b := NewLocal()
	sub, _ := b.Subscribe(ctx, "1")
	_ = sub.Close()
	_ = sub.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("channel should be closed")
	}
	if err := b.Publish(ctx, "1", []byte("x")); err != nil {
		t.Errorf("Publish with no subscribers: %v", err)
	}
	if len(b.subs) != 0 {
		t.Errorf("subs = %d, want 0", len(b.subs))
	}
}

func TestLocalSlowSubscriberDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	b := NewLocal()
	defer b.Close()
	sub, _ := b.Subscribe(ctx, "1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = b.Publish(ctx, "1", []byte("x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if n := len(sub.C()); n != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", n, subscriberBuffer)
	}
}

func TestLocalClose(t *testing.T) {
	ctx := context.Background()
	b := NewLocal()
	sub, _ := b.Subscribe(ctx, "1")
	_ = b.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("Close should end subscriptions")
	}
	if err := b.Publish(ctx, "1", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close = %v", err)
	}
	if _, err := b.Subscribe(ctx, "1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe after Close = %v", err)
	}
}

func TestChannelName(t *testing.T) {
	if got := channelName("42"); got != "tandem:doc:42" {
		t.Errorf("channelName = %q", got)
	}
}
