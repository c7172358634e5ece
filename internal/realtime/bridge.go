package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/pkg/logger"
	"marketplace-chat-be/pkg/events"

	"github.com/google/uuid"
)

const (
	moduleName        = "RealtimeBridge"
	defaultBufferSize = 256
)

type Config struct {
	BufferSize int
}

// Handlers are invoked one at a time. OnError and OnResync are optional.
type Handlers struct {
	OnMessage func(msg entity.Message)
	OnError   func(err error)
	// OnResync runs when events may have been missed: the transport came back,
	// or the consumer fell a full buffer behind and events were dropped.
	OnResync func()
}

// Bridge turns fan-out events into per-conversation message callbacks.
type Bridge struct {
	fanout Fanout
	cfg    Config
	logger logger.ILogger
}

func NewBridge(fanout Fanout, cfg Config, log logger.ILogger) *Bridge {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	return &Bridge{
		fanout: fanout,
		cfg:    cfg,
		logger: log,
	}
}

// Open subscribes to message-inserted events of one conversation.
// Events for other conversations, or of any other type, never reach the handlers.
func (b *Bridge) Open(ctx context.Context, conversationId uuid.UUID, h Handlers) (*Subscription, error) {
	if conversationId == uuid.Nil {
		return nil, fmt.Errorf("%w: conversation id is required", entity.ErrInvalidArgument)
	}
	if h.OnMessage == nil {
		return nil, fmt.Errorf("%w: message handler is required", entity.ErrInvalidArgument)
	}

	s := &Subscription{
		conversationId: conversationId,
		handlers:       h,
		logger:         b.logger,
		queue:          make(chan entity.Message, b.cfg.BufferSize),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}

	sub, err := b.fanout.Subscribe(ctx, Topic(conversationId), TopicHandlers{
		OnEvent:       s.receive,
		OnError:       s.fail,
		OnResubscribe: func() { s.resync("transport resubscribed") },
	})
	if err != nil {
		b.logger.Warn(moduleName, "Failed to open subscription", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"error":           err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", entity.ErrSubscription, err)
	}
	s.sub = sub

	if notifier, ok := b.fanout.(TransportNotifier); ok {
		s.detach = append(s.detach,
			notifier.OnDisconnect(s.fail),
			notifier.OnReconnect(func() { s.resync("transport reconnected") }),
		)
	}

	go s.dispatch()

	b.logger.Info(moduleName, "Subscription opened", map[string]interface{}{
		"conversation_id": conversationId.String(),
	})
	return s, nil
}

// Subscription is a live feed for one conversation. Close it exactly when the
// consumer goes away; after Close returns no handler runs again.
type Subscription struct {
	conversationId uuid.UUID
	handlers       Handlers
	logger         logger.ILogger
	sub            TopicSubscription
	detach         []func()

	queue   chan entity.Message
	done    chan struct{}
	stopped chan struct{}
	lagging atomic.Bool // events were dropped since the queue last drained

	mu        sync.Mutex // held while a handler runs
	closed    bool
	closeOnce sync.Once
}

func (s *Subscription) ConversationID() uuid.UUID {
	return s.conversationId
}

func (s *Subscription) receive(env events.Envelope) {
	if env.EventType() != events.MessageInserted {
		return
	}
	msg, err := DecodeMessage(env)
	if err != nil {
		s.logger.Warn(moduleName, "Dropping undecodable event", map[string]interface{}{
			"conversation_id": s.conversationId.String(),
			"error":           err.Error(),
		})
		return
	}
	if msg.ConversationId != s.conversationId {
		return
	}
	// Never wait on the consumer: the publisher is blocked until this returns.
	select {
	case s.queue <- msg:
	case <-s.done:
	default:
		if s.lagging.CompareAndSwap(false, true) {
			s.logger.Warn(moduleName, "Consumer is behind, dropping events until it drains", map[string]interface{}{
				"conversation_id": s.conversationId.String(),
			})
		}
	}
}

func (s *Subscription) dispatch() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.queue:
			s.mu.Lock()
			if !s.closed {
				s.handlers.OnMessage(msg)
			}
			s.mu.Unlock()

			if len(s.queue) == 0 && s.lagging.CompareAndSwap(true, false) {
				s.resync("dropped events")
			}
		}
	}
}

func (s *Subscription) fail(err error) {
	if err == nil {
		return
	}
	s.logger.Warn(moduleName, "Transport error", map[string]interface{}{
		"conversation_id": s.conversationId.String(),
		"error":           err.Error(),
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.handlers.OnError == nil {
		return
	}
	s.handlers.OnError(fmt.Errorf("%w: %w", entity.ErrSubscription, err))
}

func (s *Subscription) resync(reason string) {
	s.logger.Info(moduleName, "Resync needed", map[string]interface{}{
		"conversation_id": s.conversationId.String(),
		"reason":          reason,
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.handlers.OnResync == nil {
		return
	}
	s.handlers.OnResync()
}

// Close is idempotent and returns after the dispatcher has stopped.
// It must not be called from inside a handler.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.done)
		for _, remove := range s.detach {
			remove()
		}
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Warn(moduleName, "Failed to unsubscribe", map[string]interface{}{
				"conversation_id": s.conversationId.String(),
				"error":           err.Error(),
			})
		}
		<-s.stopped

		s.logger.Info(moduleName, "Subscription closed", map[string]interface{}{
			"conversation_id": s.conversationId.String(),
		})
	})
}
