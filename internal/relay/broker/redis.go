package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/bethropolis/tandem/internal/logger"
)

// ChannelPrefix namespaces the pub/sub channels per document.
const ChannelPrefix = "tandem:doc:"

// Redis fans frames out across relay instances with Redis pub/sub.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to addr and verifies the server answers.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

func channelName(docID string) string {
	return ChannelPrefix + docID
}

func (r *Redis) Publish(ctx context.Context, docID string, payload []byte) error {
	if err := r.client.Publish(ctx, channelName(docID), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", docID, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, docID string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, channelName(docID))
	// Wait for the confirmation so a Publish right after Subscribe is not lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", docID, err)
	}
	s := &redisSub{ps: ps, ch: make(chan []byte, subscriberBuffer)}
	go s.forward(docID)
	return s, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan []byte
	once sync.Once
}

func (s *redisSub) forward(docID string) {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		select {
		case s.ch <- []byte(msg.Payload):
		default:
			logger.WarnTagf("broker", "dropping frame for %s: subscriber is slow", docID)
		}
	}
}

func (s *redisSub) C() <-chan []byte { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}
