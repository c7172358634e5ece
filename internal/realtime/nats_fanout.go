package realtime

import (
	"context"
	"fmt"

	"marketplace-chat-be/pkg/events"
	pktNats "marketplace-chat-be/pkg/nats"

	"github.com/nats-io/nats.go"
)

const natsSubjectPrefix = "chat.conversations."

// NatsFanout fans events out across instances over core NATS subjects.
type NatsFanout struct {
	client *pktNats.Client
}

func NewNatsFanout(client *pktNats.Client) *NatsFanout {
	return &NatsFanout{client: client}
}

func natsSubject(topic string) string {
	return natsSubjectPrefix + topic
}

func (f *NatsFanout) Publish(ctx context.Context, env events.Envelope) error {
	data, err := events.Marshal(env)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, natsSubject(env.Topic()), data)
}

// Subscribe relies on the client to resubscribe after a reconnect; the bridge
// learns about reconnects through OnReconnect.
func (f *NatsFanout) Subscribe(ctx context.Context, topic string, h TopicHandlers) (TopicSubscription, error) {
	sub, err := f.client.Subscribe(natsSubject(topic), func(data []byte) {
		env, err := events.Unmarshal(data)
		if err != nil {
			return
		}
		h.OnEvent(env)
	})
	if err != nil {
		return nil, err
	}
	return &natsSubscription{sub: sub}, nil
}

func (f *NatsFanout) OnReconnect(fn func()) func() {
	return f.client.OnReconnect(fn)
}

func (f *NatsFanout) OnDisconnect(fn func(error)) func() {
	return f.client.OnDisconnect(fn)
}

func (f *NatsFanout) Close() error {
	f.client.Close()
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	if err := s.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
		return fmt.Errorf("failed to unsubscribe from %s: %w", s.sub.Subject, err)
	}
	return nil
}
