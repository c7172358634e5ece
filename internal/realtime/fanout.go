package realtime

import (
	"context"

	"marketplace-chat-be/pkg/events"
)

// EventHandler receives events for one topic, in the order the driver emits them.
type EventHandler func(env events.Envelope)

// ErrorHandler is told about transport failures that end or interrupt a subscription.
type ErrorHandler func(err error)

// TopicHandlers receive one topic's traffic. OnError and OnResubscribe are optional.
type TopicHandlers struct {
	OnEvent EventHandler
	OnError ErrorHandler
	// OnResubscribe runs when the driver re-established the subscription by itself.
	// Events published while it was down are gone.
	OnResubscribe func()
}

// Fanout is the push mechanism that notifies subscribers of new rows.
type Fanout interface {
	Publish(ctx context.Context, env events.Envelope) error
	Subscribe(ctx context.Context, topic string, h TopicHandlers) (TopicSubscription, error)
	Close() error
}

// TopicSubscription is a driver-level subscription to one topic.
type TopicSubscription interface {
	Unsubscribe() error
}

// TransportNotifier is implemented by drivers that can observe their connection
// dropping and coming back.
type TransportNotifier interface {
	OnReconnect(fn func()) (remove func())
	OnDisconnect(fn func(error)) (remove func())
}
