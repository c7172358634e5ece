package chatsession

import (
	"context"
	"sync"
	"time"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/realtime"

	"github.com/google/uuid"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	convId   uuid.UUID
	rows     []entity.Message
	listErr  error
	lists    int
	appends  int
	appendFn func(ctx context.Context, content, nonce string) (*entity.Message, error)
}

func newFakeStore(convId uuid.UUID) *fakeStore {
	return &fakeStore{convId: convId}
}

// insert persists a row the way the real store would: server-assigned id and time.
func (f *fakeStore) insert(sender uuid.UUID, content string) entity.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := entity.Message{
		Id:             uuid.New(),
		ConversationId: f.convId,
		SenderId:       sender,
		Content:        content,
		CreatedAt:      epoch.Add(time.Duration(len(f.rows)) * time.Second),
	}
	f.rows = append(f.rows, msg)
	return msg
}

func (f *fakeStore) List(ctx context.Context, conversationId, callerId uuid.UUID) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]entity.Message, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeStore) Append(ctx context.Context, conversationId, senderId uuid.UUID, content, clientNonce string) (*entity.Message, error) {
	f.mu.Lock()
	f.appends++
	fn := f.appendFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, content, clientNonce)
	}
	msg := f.insert(senderId, content)
	msg.ClientNonce = clientNonce
	return &msg, nil
}

func (f *fakeStore) appendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends
}

type fakeSubscription struct {
	mu     sync.Mutex
	closes int
}

func (s *fakeSubscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
}

func (s *fakeSubscription) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeBridge struct {
	mu       sync.Mutex
	openErr  error
	opened   int
	handlers realtime.Handlers
	sub      *fakeSubscription
}

func (b *fakeBridge) Open(ctx context.Context, conversationId uuid.UUID, h realtime.Handlers) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened++
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.handlers = h
	b.sub = &fakeSubscription{}
	return b.sub, nil
}

func (b *fakeBridge) current() realtime.Handlers {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers
}

func (b *fakeBridge) deliver(msg entity.Message) {
	b.current().OnMessage(msg)
}

type viewRecorder struct {
	mu           sync.Mutex
	merged       []entity.Message
	notices      []Notice
	connectivity []bool
}

func (r *viewRecorder) listener() Listener {
	return Listener{
		OnMerge: func(added []entity.Message) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.merged = append(r.merged, added...)
		},
		OnNotice: func(n Notice) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.notices = append(r.notices, n)
		},
		OnConnectivity: func(degraded bool, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.connectivity = append(r.connectivity, degraded)
		},
	}
}

func (r *viewRecorder) noticeList() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

func (r *viewRecorder) mergedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.merged)
}
