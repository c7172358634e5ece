package realtime

import (
	"context"
	"fmt"
	"sync"

	"marketplace-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// MemoryFanout delivers events inside one process over a watermill GoChannel.
type MemoryFanout struct {
	pubSub *gochannel.GoChannel
}

func NewMemoryFanout(bufferSize int) *MemoryFanout {
	return &MemoryFanout{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: int64(bufferSize),
				// Without this every message is handed to subscribers on its own
				// goroutine and per-topic order is lost. Publish waits for each
				// subscriber's OnEvent, so OnEvent must not block on its consumer.
				BlockPublishUntilSubscriberAck: true,
			},
			watermill.NewStdLogger(false, false),
		),
	}
}

func (f *MemoryFanout) Publish(ctx context.Context, env events.Envelope) error {
	payload, err := events.Marshal(env)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := f.pubSub.Publish(env.Topic(), msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", env.Topic(), err)
	}
	return nil
}

func (f *MemoryFanout) Subscribe(ctx context.Context, topic string, h TopicHandlers) (TopicSubscription, error) {
	// The subscription outlives the ctx of the call that opened it.
	subCtx, cancel := context.WithCancel(context.Background())
	messages, err := f.pubSub.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range messages {
			env, err := events.Unmarshal(msg.Payload)
			if err == nil {
				h.OnEvent(env)
			}
			msg.Ack()
		}
	}()

	return &memorySubscription{cancel: cancel, done: done}, nil
}

func (f *MemoryFanout) Close() error {
	return f.pubSub.Close()
}

type memorySubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe returns once the delivery goroutine has exited.
func (s *memorySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}
