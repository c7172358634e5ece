// Package chatsession keeps one participant's ordered, deduplicated view of a
// conversation in sync with the store and the realtime feed.
package chatsession

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/pkg/logger"
	"marketplace-chat-be/internal/realtime"

	"github.com/google/uuid"
)

const moduleName = "ChatSession"

var (
	ErrSendInProgress = errors.New("a message is already being sent")
	ErrClosed         = errors.New("chat session is closed")
	ErrNotReady       = errors.New("chat session is not initialized")

	ErrAlreadyInitialized = errors.New("chat session is already initialized")
)

type State int

const (
	StateLoading State = iota
	StateReady
	StateSending
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type MessageStore interface {
	Append(ctx context.Context, conversationId, senderId uuid.UUID, content, clientNonce string) (*entity.Message, error)
	List(ctx context.Context, conversationId, callerId uuid.UUID) ([]entity.Message, error)
}

type Resolver interface {
	Resolve(ctx context.Context, listingId, sellerId, callerId uuid.UUID) (uuid.UUID, error)
}

type Subscription interface {
	Close()
}

type Bridge interface {
	Open(ctx context.Context, conversationId uuid.UUID, h realtime.Handlers) (Subscription, error)
}

type realtimeBridge struct {
	bridge *realtime.Bridge
}

// NewRealtimeBridge adapts a realtime.Bridge to the session's Bridge.
func NewRealtimeBridge(b *realtime.Bridge) Bridge {
	return realtimeBridge{bridge: b}
}

func (r realtimeBridge) Open(ctx context.Context, conversationId uuid.UUID, h realtime.Handlers) (Subscription, error) {
	sub, err := r.bridge.Open(ctx, conversationId, h)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Notice is a non-fatal, dismissible failure. Input is the buffer after restore.
type Notice struct {
	Err       error
	Retryable bool
	Input     string
}

// Listener receives view updates. Callbacks never overlap and never run after
// Close returns; they must not call Close themselves.
type Listener struct {
	OnMerge        func(added []entity.Message)
	OnNotice       func(n Notice)
	OnConnectivity func(degraded bool, err error)
}

type Config struct {
	UserID uuid.UUID
	// Timeout bounds each append, list and resolve call. Zero means no bound.
	Timeout time.Duration
}

type Session struct {
	cfg      Config
	store    MessageStore
	bridge   Bridge
	logger   logger.ILogger
	listener Listener

	emitMu sync.Mutex // serializes merges with their listener callbacks

	mu             sync.Mutex
	state          State
	conversationId uuid.UUID
	messages       []entity.Message
	seen           map[uuid.UUID]struct{}
	input          string
	degraded       bool
	sub            Subscription
	initializing   bool
	closed         bool
}

func New(cfg Config, store MessageStore, bridge Bridge, log logger.ILogger, listener Listener) *Session {
	return &Session{
		cfg:      cfg,
		store:    store,
		bridge:   bridge,
		logger:   log,
		listener: listener,
		state:    StateLoading,
		seen:     make(map[uuid.UUID]struct{}),
	}
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func classify(err error) error {
	if err == nil || errors.Is(err, entity.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", entity.ErrTimeout, err)
	}
	return err
}

// Contact resolves the caller's conversation about a listing and initializes the session on it.
func (s *Session) Contact(ctx context.Context, resolver Resolver, listingId, sellerId uuid.UUID) (uuid.UUID, error) {
	if s.cfg.UserID == uuid.Nil {
		return uuid.Nil, entity.ErrUnauthorized
	}
	rctx, cancel := s.withTimeout(ctx)
	conversationId, err := resolver.Resolve(rctx, listingId, sellerId, s.cfg.UserID)
	cancel()
	if err != nil {
		return uuid.Nil, classify(err)
	}
	return conversationId, s.Initialize(ctx, conversationId)
}

// Initialize seeds the view from the store, then opens the realtime feed.
// A feed that cannot be opened leaves the session usable in send-only mode.
func (s *Session) Initialize(ctx context.Context, conversationId uuid.UUID) error {
	if s.cfg.UserID == uuid.Nil {
		return entity.ErrUnauthorized
	}
	if conversationId == uuid.Nil {
		return fmt.Errorf("%w: conversation id is required", entity.ErrInvalidArgument)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateLoading || s.initializing {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.initializing = true
	s.conversationId = conversationId
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.initializing = false
		s.mu.Unlock()
	}()

	history, err := s.list(ctx, conversationId)
	if err != nil {
		return err
	}
	s.merge(history)

	sub, err := s.bridge.Open(ctx, conversationId, realtime.Handlers{
		OnMessage: s.onRealtimeMessage,
		OnError:   s.onTransportError,
		OnResync:  s.onResync,
	})
	if err != nil {
		s.logger.Warn(moduleName, "Realtime unavailable, continuing send-only", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"error":           err.Error(),
		})
		s.setConnectivity(true, err)
	} else {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			sub.Close()
			return ErrClosed
		}
		s.sub = sub
		s.mu.Unlock()

		// Rows inserted between the first list and the subscription going live.
		if err := s.Resync(ctx); err != nil {
			s.logger.Warn(moduleName, "Catch-up resync failed", map[string]interface{}{
				"conversation_id": conversationId.String(),
				"error":           err.Error(),
			})
		}
	}

	s.mu.Lock()
	if s.state == StateLoading {
		s.state = StateReady
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) list(ctx context.Context, conversationId uuid.UUID) ([]entity.Message, error) {
	lctx, cancel := s.withTimeout(ctx)
	defer cancel()
	history, err := s.store.List(lctx, conversationId, s.cfg.UserID)
	return history, classify(err)
}

// Resync re-reads the whole conversation and merges whatever the view is missing.
func (s *Session) Resync(ctx context.Context) error {
	s.mu.Lock()
	conversationId, closed := s.conversationId, s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conversationId == uuid.Nil {
		return ErrNotReady
	}

	history, err := s.list(ctx, conversationId)
	if err != nil {
		return err
	}
	s.merge(history)
	return nil
}

func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.input = text
	}
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Send submits the input buffer. Blank input is a no-op. The buffer is cleared
// up front and restored if the store rejects the message.
func (s *Session) Send(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	original := s.input
	content := strings.TrimSpace(original)
	if content == "" {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateSending {
		s.mu.Unlock()
		return ErrSendInProgress
	}
	if s.state == StateLoading {
		s.mu.Unlock()
		return ErrNotReady
	}
	conversationId := s.conversationId
	s.input = ""
	s.state = StateSending
	s.mu.Unlock()

	actx, cancel := s.withTimeout(ctx)
	msg, err := s.store.Append(actx, conversationId, s.cfg.UserID, content, uuid.NewString())
	cancel()
	err = classify(err)

	s.mu.Lock()
	if s.closed {
		// The view is gone; an append that made it to the store still reaches the others.
		s.mu.Unlock()
		return err
	}
	s.state = StateIdle
	if err != nil {
		if s.input == "" {
			s.input = original
		} else {
			s.input = original + "\n" + s.input
		}
	}
	restored := s.input
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn(moduleName, "Send failed", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"error":           err.Error(),
		})
		s.notify(Notice{Err: err, Retryable: entity.IsRetryable(err), Input: restored})
		return err
	}

	s.merge([]entity.Message{*msg})
	return nil
}

// Messages returns a snapshot ordered by (created_at, id).
func (s *Session) Messages() []entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Degraded reports send-only mode: the realtime feed is not delivering.
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Session) ConversationID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationId
}

// Close tears down the realtime feed. After it returns no listener callback runs.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateClosed
	sub := s.sub
	s.sub = nil
	conversationId := s.conversationId
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}

	// Wait out a callback that passed its closed check before we flipped the flag.
	s.emitMu.Lock()
	s.emitMu.Unlock()

	s.logger.Info(moduleName, "Session closed", map[string]interface{}{
		"conversation_id": conversationId.String(),
	})
}

func (s *Session) onRealtimeMessage(msg entity.Message) {
	s.merge([]entity.Message{msg})
}

func (s *Session) onTransportError(err error) {
	s.setConnectivity(true, err)
}

// onResync closes a gap in the realtime feed after a reconnect or dropped events.
func (s *Session) onResync() {
	// Runs on the bridge's goroutine; the list call must not hold it up.
	go func() {
		s.setConnectivity(false, nil)
		if err := s.Resync(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Warn(moduleName, "Resync after realtime gap failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
}

// merge is the only writer of the message sequence.
func (s *Session) merge(incoming []entity.Message) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var added []entity.Message
	for _, msg := range incoming {
		if msg.Id == uuid.Nil || msg.ConversationId != s.conversationId {
			continue
		}
		if _, dup := s.seen[msg.Id]; dup {
			continue
		}
		s.seen[msg.Id] = struct{}{}

		i := sort.Search(len(s.messages), func(i int) bool {
			return msg.Before(s.messages[i])
		})
		s.messages = append(s.messages, entity.Message{})
		copy(s.messages[i+1:], s.messages[i:])
		s.messages[i] = msg

		added = append(added, msg)
	}
	s.mu.Unlock()

	if len(added) > 0 && s.listener.OnMerge != nil {
		entity.SortMessages(added)
		s.listener.OnMerge(added)
	}
}

func (s *Session) notify(n Notice) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.listener.OnNotice == nil {
		return
	}
	s.listener.OnNotice(n)
}

func (s *Session) setConnectivity(degraded bool, err error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed || s.degraded == degraded {
		s.mu.Unlock()
		return
	}
	s.degraded = degraded
	conversationId := s.conversationId
	s.mu.Unlock()

	details := map[string]interface{}{"conversation_id": conversationId.String(), "degraded": degraded}
	if err != nil {
		details["error"] = err.Error()
	}
	s.logger.Info(moduleName, "Connectivity changed", details)

	if s.listener.OnConnectivity != nil {
		s.listener.OnConnectivity(degraded, err)
	}
}
