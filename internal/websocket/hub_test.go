package websocket

import (
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-chat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	inbound chan []byte
	gone    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written [][]byte
	control []int
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8), gone: make(chan struct{})}
}

func (c *fakeConn) SetReadLimit(limit int64)                    {}
func (c *fakeConn) SetReadDeadline(t time.Time) error           { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error          { return nil }
func (c *fakeConn) SetPongHandler(h func(appData string) error) {}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return websocket.TextMessage, data, nil
	case <-c.gone:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.TextMessage {
		c.written = append(c.written, data)
	} else {
		c.control = append(c.control, messageType)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.gone) })
	return nil
}

func (c *fakeConn) frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.NewNopLogger())
	go hub.Run()
	t.Cleanup(hub.Shutdown)
	return hub
}

func TestHub_ClientLifecycle(t *testing.T) {
	hub := startHub(t)
	conn := newFakeConn()
	convID := uuid.New()

	var mu sync.Mutex
	var inbound []string
	client := NewClient(hub, conn, convID, uuid.New(), func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		inbound = append(inbound, string(data))
	}, logger.NewNopLogger())

	served := make(chan struct{})
	go func() {
		ServeWs(hub, client)
		close(served)
	}()

	require.Eventually(t, func() bool { return hub.Count(convID) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.Total())

	conn.inbound <- []byte(`{"type":"send","content":"tere"}`)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(inbound) == 1
	}, time.Second, 5*time.Millisecond)

	assert.True(t, client.Enqueue([]byte(`{"type":"ready"}`)))
	assert.True(t, client.Enqueue([]byte(`{"type":"messages"}`)))
	require.Eventually(t, func() bool { return len(conn.frames()) == 2 }, time.Second, 5*time.Millisecond)
	// One websocket message per frame, never concatenated.
	assert.Equal(t, []string{`{"type":"ready"}`, `{"type":"messages"}`}, conn.frames())

	// Peer goes away.
	conn.Close()
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("ServeWs did not return")
	}
	require.Eventually(t, func() bool { return hub.Count(convID) == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, client.Enqueue([]byte(`{}`)))
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newFakeConn(), uuid.New(), uuid.New(), nil, logger.NewNopLogger())

	// No write pump running: the buffer fills up.
	for i := 0; i < sendBufferSize; i++ {
		require.True(t, client.Enqueue([]byte("x")))
	}
	assert.False(t, client.Enqueue([]byte("overflow")))
	assert.False(t, client.Enqueue([]byte("after")))
}

func TestHub_ShutdownDisconnectsEveryone(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	go hub.Run()

	convID := uuid.New()
	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	var wg sync.WaitGroup
	for _, conn := range conns {
		client := NewClient(hub, conn, convID, uuid.New(), nil, logger.NewNopLogger())
		wg.Add(1)
		go func() {
			defer wg.Done()
			ServeWs(hub, client)
		}()
	}
	require.Eventually(t, func() bool { return hub.Count(convID) == 2 }, time.Second, 5*time.Millisecond)

	hub.Shutdown()
	hub.Shutdown()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("connections were not closed")
	}
	assert.Equal(t, 0, hub.Total())

	// Late arrivals are refused.
	late := newFakeConn()
	ServeWs(hub, NewClient(hub, late, convID, uuid.New(), nil, logger.NewNopLogger()))
	select {
	case <-late.gone:
	default:
		t.Fatal("late connection left open")
	}
}
