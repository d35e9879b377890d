// Package broker fans document messages out to every relay instance that
// has clients on the same document.
package broker

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned after the broker has been closed.
var ErrClosed = errors.New("broker closed")

// Broker publishes raw frames per document and delivers them to subscribers.
type Broker interface {
	Publish(ctx context.Context, docID string, payload []byte) error
	Subscribe(ctx context.Context, docID string) (Subscription, error)
	Close() error
}

// Subscription is a live feed of one document's frames.
type Subscription interface {
	C() <-chan []byte
	Close() error
}

const subscriberBuffer = 256

// Local is an in-process Broker for a single relay instance.
type Local struct {
	mu     sync.RWMutex
	subs   map[string]map[*localSub]struct{}
	closed bool
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[*localSub]struct{})}
}

type localSub struct {
	b     *Local
	docID string
	ch    chan []byte
	once  sync.Once
}

func (s *localSub) C() <-chan []byte { return s.ch }

func (s *localSub) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		if set, ok := s.b.subs[s.docID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.b.subs, s.docID)
			}
		}
		close(s.ch)
	})
	return nil
}

// Publish never blocks: a subscriber whose buffer is full misses the frame.
func (b *Local) Publish(_ context.Context, docID string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for s := range b.subs[docID] {
		select {
		case s.ch <- payload:
		default:
		}
	}
	return nil
}

func (b *Local) Subscribe(_ context.Context, docID string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &localSub{b: b, docID: docID, ch: make(chan []byte, subscriberBuffer)}
	set, ok := b.subs[docID]
	if !ok {
		set = make(map[*localSub]struct{})
		b.subs[docID] = set
	}
	set[s] = struct{}{}
	return s, nil
}

// Close ends every subscription.
func (b *Local) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*localSub
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.mu.Unlock()
	for _, s := range all {
		_ = s.Close()
	}
	return nil
}
