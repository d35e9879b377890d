// Package loop runs every session callback on one goroutine, in the order the
// callbacks were posted. Network reads, key presses and timer fires are all
// posted here, so no two of them ever run at the same time.
package loop

import (
	"context"
	"errors"
	"sync"

	"github.com/bethropolis/tandem/internal/logger"
)

// DefaultQueueSize is used when New is given a non-positive size.
const DefaultQueueSize = 256

// ErrStopped is returned by Post after the loop has exited.
var ErrStopped = errors.New("event loop stopped")

// Loop is a FIFO of closures drained by Run.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop with a buffered queue of size tasks.
func New(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post queues fn. It blocks while the queue is full and fails once the loop
// has stopped.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Run drains the queue until ctx is cancelled. Tasks still queued when the
// context ends are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("loop: task panicked: %v", r)
		}
	}()
	fn()
}
