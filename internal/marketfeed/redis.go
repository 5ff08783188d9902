package marketfeed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisFeed publishes and subscribes to trade events over Redis pub/sub.
type RedisFeed struct {
	client redis.UniversalClient
}

// NewRedisFeed creates a feed over an existing client.
func NewRedisFeed(client redis.UniversalClient) *RedisFeed {
	return &RedisFeed{client: client}
}

func (f *RedisFeed) Publish(ctx context.Context, event TradeEvent) error {
	if event.Symbol == "" {
		return errors.New("symbol cannot be empty")
	}
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, Channel(event.Symbol), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Symbol, err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, symbol string) (Subscription, error) {
	if symbol == "" {
		return nil, errors.New("symbol cannot be empty")
	}
	pubsub := f.client.Subscribe(ctx, Channel(symbol))
	// Wait for the subscription to be confirmed before handing it out.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", symbol, err)
	}

	sub := &redisSubscription{pubsub: pubsub, out: make(chan []byte, 64), done: make(chan struct{})}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	for msg := range s.pubsub.Channel() {
		select {
		case s.out <- []byte(msg.Payload):
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
