package chatsession

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	convId  uuid.UUID
	buyer   uuid.UUID
	seller  uuid.UUID
	store   *fakeStore
	bridge  *fakeBridge
	view    *viewRecorder
	session *Session
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		convId: uuid.New(),
		buyer:  uuid.New(),
		seller: uuid.New(),
		bridge: &fakeBridge{},
		view:   &viewRecorder{},
	}
	f.store = newFakeStore(f.convId)
	f.session = New(Config{UserID: f.buyer, Timeout: timeout}, f.store, f.bridge, logger.NewNopLogger(), f.view.listener())
	t.Cleanup(f.session.Close)
	return f
}

func assertOrderedAndUnique(t *testing.T, messages []entity.Message) {
	t.Helper()
	seen := make(map[uuid.UUID]bool, len(messages))
	for i, msg := range messages {
		assert.False(t, seen[msg.Id], "duplicate id %s", msg.Id)
		seen[msg.Id] = true
		if i > 0 {
			assert.True(t, messages[i-1].Before(msg), "out of order at %d", i)
		}
	}
}

func TestInitialize_SeedsFromHistoryThenSubscribes(t *testing.T) {
	f := newFixture(t, time.Second)
	first := f.store.insert(f.seller, "Tere")
	second := f.store.insert(f.buyer, "Tere!")

	require.NoError(t, f.session.Initialize(context.Background(), f.convId))

	assert.Equal(t, StateReady, f.session.State())
	assert.False(t, f.session.Degraded())
	assert.Equal(t, f.convId, f.session.ConversationID())
	assert.Equal(t, 1, f.bridge.opened)
	// Initial list plus the catch-up list once the feed is live.
	assert.Equal(t, 2, f.store.lists)

	got := f.session.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, first.Id, got[0].Id)
	assert.Equal(t, second.Id, got[1].Id)
	assert.Equal(t, 2, f.view.mergedCount())

	assert.ErrorIs(t, f.session.Initialize(context.Background(), f.convId), ErrAlreadyInitialized)
}

func TestInitialize_ListFailureIsReported(t *testing.T) {
	f := newFixture(t, time.Second)
	f.store.listErr = fmt.Errorf("%w: connection refused", entity.ErrPersistence)

	err := f.session.Initialize(context.Background(), f.convId)
	require.ErrorIs(t, err, entity.ErrPersistence)
	assert.Equal(t, StateLoading, f.session.State())
	assert.Equal(t, 0, f.bridge.opened)

	// Retrying once the store is back works.
	f.store.mu.Lock()
	f.store.listErr = nil
	f.store.mu.Unlock()
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))
	assert.Equal(t, StateReady, f.session.State())
}

func TestInitialize_RequiresIdentity(t *testing.T) {
	s := New(Config{}, newFakeStore(uuid.New()), &fakeBridge{}, logger.NewNopLogger(), Listener{})
	assert.ErrorIs(t, s.Initialize(context.Background(), uuid.New()), entity.ErrUnauthorized)
}

func TestInitialize_SubscriptionFailureDegradesToSendOnly(t *testing.T) {
	f := newFixture(t, time.Second)
	f.bridge.openErr = fmt.Errorf("%w: dial tcp: connection refused", entity.ErrSubscription)

	require.NoError(t, f.session.Initialize(context.Background(), f.convId))
	assert.True(t, f.session.Degraded())
	assert.Equal(t, StateReady, f.session.State())
	assert.Equal(t, []bool{true}, f.view.connectivity)

	f.session.SetInput("ikka saadan")
	require.NoError(t, f.session.Send(context.Background()))
	require.Len(t, f.session.Messages(), 1)
	assert.Equal(t, "ikka saadan", f.session.Messages()[0].Content)
}

func TestSend_LocalConfirmationAndEchoAreMergedOnce(t *testing.T) {
	f := newFixture(t, time.Second)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))

	// The echo overtakes the append response.
	f.store.appendFn = func(ctx context.Context, content, nonce string) (*entity.Message, error) {
		msg := f.store.insert(f.buyer, content)
		msg.ClientNonce = nonce
		f.bridge.deliver(msg)
		return &msg, nil
	}

	f.session.SetInput("Tere, kas alused on veel saadaval?")
	require.NoError(t, f.session.Send(context.Background()))

	got := f.session.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, f.buyer, got[0].SenderId)
	assert.NotEmpty(t, got[0].ClientNonce)
	assert.Equal(t, "", f.session.Input())
	assert.Equal(t, StateIdle, f.session.State())

	// A late duplicate delivery changes nothing either.
	f.bridge.deliver(got[0])
	assert.Len(t, f.session.Messages(), 1)
	assert.Equal(t, 1, f.view.mergedCount())
}

func TestSend_BlankInputIsNoop(t *testing.T) {
	f := newFixture(t, time.Second)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))

	f.session.SetInput("  \n\t ")
	require.NoError(t, f.session.Send(context.Background()))
	assert.Equal(t, 0, f.store.appendCount())
	assert.Equal(t, "  \n\t ", f.session.Input())
}

func TestSend_FailureRestoresInputVerbatim(t *testing.T) {
	f := newFixture(t, time.Second)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))
	f.store.appendFn = func(ctx context.Context, content, nonce string) (*entity.Message, error) {
		return nil, fmt.Errorf("%w: 503 from store", entity.ErrPersistence)
	}

	f.session.SetInput("  Kas hind on läbiräägitav?  ")
	err := f.session.Send(context.Background())
	require.ErrorIs(t, err, entity.ErrPersistence)

	assert.Equal(t, "  Kas hind on läbiräägitav?  ", f.session.Input())
	assert.Empty(t, f.session.Messages())
	assert.Equal(t, StateIdle, f.session.State())

	notices := f.view.noticeList()
	require.Len(t, notices, 1)
	assert.True(t, notices[0].Retryable)
	assert.ErrorIs(t, notices[0].Err, entity.ErrPersistence)
	assert.Equal(t, "  Kas hind on läbiräägitav?  ", notices[0].Input)

	// Not retried automatically.
	assert.Equal(t, 1, f.store.appendCount())
}

func TestSend_ForbiddenIsNotRetryable(t *testing.T) {
	f := newFixture(t, time.Second)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))
	f.store.appendFn = func(ctx context.Context, content, nonce string) (*entity.Message, error) {
		return nil, entity.ErrForbidden
	}

	f.session.SetInput("hi")
	require.ErrorIs(t, f.session.Send(context.Background()), entity.ErrForbidden)
	notices := f.view.noticeList()
	require.Len(t, notices, 1)
	assert.False(t, notices[0].Retryable)
}

func TestSend_SecondSendWhilePendingIsRejected(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))

	release := make(chan struct{})
	f.store.appendFn = func(ctx context.Context, content, nonce string) (*entity.Message, error) {
		<-release
		msg := f.store.insert(f.buyer, content)
		return &msg, nil
	}

	f.session.SetInput("esimene")
	done := make(chan error, 1)
	go func() { done <- f.session.Send(context.Background()) }()
	require.Eventually(t, func() bool { return f.session.State() == StateSending }, time.Second, time.Millisecond)

	f.session.SetInput("teine")
	assert.ErrorIs(t, f.session.Send(context.Background()), ErrSendInProgress)
	assert.Equal(t, "teine", f.session.Input())

	close(release)
	require.NoError(t, <-done)

	got := f.session.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, "esimene", got[0].Content)
	assert.Equal(t, "teine", f.session.Input())
	assert.Equal(t, 1, f.store.appendCount())
}

func TestSend_FailureKeepsTextTypedWhilePending(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))

	release := make(chan struct{})
	f.store.appendFn = func(ctx context.Context, content, nonce string) (*entity.Message, error) {
		<-release
		return nil, entity.ErrPersistence
	}

	f.session.SetInput("esimene")
	done := make(chan error, 1)
	go func() { done <- f.session.Send(context.Background()) }()
	require.Eventually(t, func() bool { return f.session.State() == StateSending }, time.Second, time.Millisecond)
	f.session.SetInput("teine")
	close(release)

	require.Error(t, <-done)
	assert.Equal(t, "esimene\nteine", f.session.Input())
}

func TestSend_TimeoutIsRetryable(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))
	f.store.appendFn = func(ctx context.Context, content, nonce string) (*entity.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.session.SetInput("aeglane")
	err := f.session.Send(context.Background())
	require.ErrorIs(t, err, entity.ErrTimeout)
	assert.True(t, entity.IsRetryable(err))
	assert.Equal(t, "aeglane", f.session.Input())
}

func TestSend_BeforeInitializeIsNotReady(t *testing.T) {
	f := newFixture(t, time.Second)
	f.session.SetInput("liiga vara")
	assert.ErrorIs(t, f.session.Send(context.Background()), ErrNotReady)
	assert.Equal(t, "liiga vara", f.session.Input())
}

func TestMerge_TotalOrderRegardlessOfArrival(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			f := newFixture(t, time.Second)

			var all []entity.Message
			for i := 0; i < 30; i++ {
				all = append(all, entity.Message{
					Id:             uuid.New(),
					ConversationId: f.convId,
					SenderId:       f.seller,
					Content:        fmt.Sprintf("m%d", i),
					// Few distinct timestamps so the id tiebreak is exercised.
					CreatedAt: epoch.Add(time.Duration(rng.Intn(5)) * time.Millisecond),
				})
			}

			for _, msg := range all {
				if rng.Intn(3) == 0 {
					f.store.rows = append(f.store.rows, msg)
				}
			}
			require.NoError(t, f.session.Initialize(context.Background(), f.convId))

			deliveries := append([]entity.Message{}, all...)
			deliveries = append(deliveries, all[:10]...)
			rng.Shuffle(len(deliveries), func(i, j int) { deliveries[i], deliveries[j] = deliveries[j], deliveries[i] })
			for _, msg := range deliveries {
				f.bridge.deliver(msg)
			}

			got := f.session.Messages()
			require.Len(t, got, len(all))
			assertOrderedAndUnique(t, got)

			expected := append([]entity.Message{}, all...)
			entity.SortMessages(expected)
			for i := range expected {
				assert.Equal(t, expected[i].Id, got[i].Id)
			}
		})
	}
}

func TestMerge_IgnoresOtherConversations(t *testing.T) {
	f := newFixture(t, time.Second)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))

	f.bridge.deliver(entity.Message{Id: uuid.New(), ConversationId: uuid.New(), Content: "stray", CreatedAt: epoch})
	assert.Empty(t, f.session.Messages())
}

func TestClose_IsIdempotentAndStopsUpdates(t *testing.T) {
	f := newFixture(t, time.Second)
	f.store.insert(f.seller, "Tere")
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))

	f.session.Close()
	f.session.Close()
	assert.Equal(t, 1, f.bridge.sub.closeCount())
	assert.Equal(t, StateClosed, f.session.State())

	// A straggling delivery from the transport is dropped.
	f.bridge.deliver(entity.Message{Id: uuid.New(), ConversationId: f.convId, Content: "late", CreatedAt: epoch.Add(time.Hour)})
	assert.Len(t, f.session.Messages(), 1)
	assert.Equal(t, 1, f.view.mergedCount())

	f.session.SetInput("hi")
	assert.ErrorIs(t, f.session.Send(context.Background()), ErrClosed)
	assert.ErrorIs(t, f.session.Resync(context.Background()), ErrClosed)
	assert.ErrorIs(t, f.session.Initialize(context.Background(), f.convId), ErrClosed)
}

func TestClose_DuringPendingSendDiscardsResult(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))

	release := make(chan struct{})
	f.store.appendFn = func(ctx context.Context, content, nonce string) (*entity.Message, error) {
		<-release
		msg := f.store.insert(f.buyer, content)
		return &msg, nil
	}

	f.session.SetInput("viimane")
	done := make(chan error, 1)
	go func() { done <- f.session.Send(context.Background()) }()
	require.Eventually(t, func() bool { return f.session.State() == StateSending }, time.Second, time.Millisecond)

	f.session.Close()
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, f.session.Messages())
	// The append still landed for everyone else.
	assert.Len(t, f.store.rows, 1)
}

func TestReconnect_ResyncsAndClearsDegraded(t *testing.T) {
	f := newFixture(t, time.Second)
	require.NoError(t, f.session.Initialize(context.Background(), f.convId))

	handlers := f.bridge.current()
	handlers.OnError(errors.New("nats: stale connection"))
	assert.True(t, f.session.Degraded())

	// Written while the feed was down; never delivered in realtime.
	missed := f.store.insert(f.seller, "Kas see jõudis kohale?")
	handlers.OnResync()

	require.Eventually(t, func() bool {
		got := f.session.Messages()
		return len(got) == 1 && got[0].Id == missed.Id
	}, time.Second, 5*time.Millisecond)
	assert.False(t, f.session.Degraded())

	f.view.mu.Lock()
	assert.Equal(t, []bool{true, false}, f.view.connectivity)
	f.view.mu.Unlock()
}

type fakeResolver struct {
	id  uuid.UUID
	err error
}

func (r fakeResolver) Resolve(ctx context.Context, listingId, sellerId, callerId uuid.UUID) (uuid.UUID, error) {
	return r.id, r.err
}

func TestContact(t *testing.T) {
	f := newFixture(t, time.Second)

	id, err := f.session.Contact(context.Background(), fakeResolver{id: f.convId}, uuid.New(), f.seller)
	require.NoError(t, err)
	assert.Equal(t, f.convId, id)
	assert.Equal(t, StateReady, f.session.State())

	other := newFixture(t, time.Second)
	_, err = other.session.Contact(context.Background(), fakeResolver{err: entity.ErrSelfConversation}, uuid.New(), other.buyer)
	assert.ErrorIs(t, err, entity.ErrSelfConversation)
	assert.Equal(t, StateLoading, other.session.State())
}
