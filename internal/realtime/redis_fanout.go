package realtime

import (
	"context"
	"fmt"
	"sync"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/pkg/events"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "chat:"

// RedisFanout fans events out across instances over Redis pub/sub channels.
type RedisFanout struct {
	rdb *redis.Client
}

func NewRedisFanout(rdb *redis.Client) *RedisFanout {
	return &RedisFanout{rdb: rdb}
}

func redisChannel(topic string) string {
	return redisChannelPrefix + topic
}

func (f *RedisFanout) Publish(ctx context.Context, env events.Envelope) error {
	data, err := events.Marshal(env)
	if err != nil {
		return err
	}
	if err := f.rdb.Publish(ctx, redisChannel(env.Topic()), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", redisChannel(env.Topic()), err)
	}
	return nil
}

// Subscribe confirms the subscription before returning. go-redis reconnects and
// resubscribes on its own; every later confirmation is reported as OnResubscribe.
func (f *RedisFanout) Subscribe(ctx context.Context, topic string, h TopicHandlers) (TopicSubscription, error) {
	channel := redisChannel(topic)
	pubsub := f.rdb.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so a dead server fails here, not later.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	s := newRedisSubscription(pubsub)
	go s.pump(pubsub.ChannelWithSubscriptions(), channel, h)
	return s, nil
}

func (f *RedisFanout) Close() error {
	return f.rdb.Close()
}

type redisSubscription struct {
	pubsub  *redis.PubSub
	closing chan struct{}
	done    chan struct{}
	once    sync.Once
	err     error
}

func newRedisSubscription(pubsub *redis.PubSub) *redisSubscription {
	return &redisSubscription{
		pubsub:  pubsub,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// pump forwards messages and resubscribe confirmations until Unsubscribe.
func (s *redisSubscription) pump(ch <-chan interface{}, channel string, h TopicHandlers) {
	defer close(s.done)
	for {
		select {
		case <-s.closing:
			return
		case v, ok := <-ch:
			if !ok {
				select {
				case <-s.closing:
				default:
					if h.OnError != nil {
						h.OnError(fmt.Errorf("%w: redis channel %s closed", entity.ErrSubscription, channel))
					}
				}
				return
			}
			switch msg := v.(type) {
			case *redis.Subscription:
				if msg.Kind == "subscribe" && h.OnResubscribe != nil {
					h.OnResubscribe()
				}
			case *redis.Message:
				env, err := events.Unmarshal([]byte(msg.Payload))
				if err != nil {
					continue
				}
				h.OnEvent(env)
			}
		}
	}
}

func (s *redisSubscription) Unsubscribe() error {
	s.once.Do(func() {
		close(s.closing)
		s.err = s.pubsub.Close()
		<-s.done
	})
	return s.err
}
