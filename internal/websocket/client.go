package websocket

import (
	"sync"
	"time"

	"marketplace-chat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBufferSize = 256
)

// Conn is the subset of *websocket.Conn the pumps use.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// FrameHandler receives each inbound text frame.
type FrameHandler func(data []byte)

// Client is a middleman between the websocket connection and one chat session.
type Client struct {
	hub  *Hub
	conn Conn

	ConversationID uuid.UUID
	UserID         uuid.UUID

	// Buffered channel of outbound frames.
	send    chan []byte
	onFrame FrameHandler
	logger  logger.ILogger

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn Conn, conversationID, userID uuid.UUID, onFrame FrameHandler, log logger.ILogger) *Client {
	return &Client{
		hub:            hub,
		conn:           conn,
		ConversationID: conversationID,
		UserID:         userID,
		send:           make(chan []byte, sendBufferSize),
		onFrame:        onFrame,
		logger:         log,
	}
}

// Enqueue queues one frame. A client that cannot keep up is disconnected.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("Hub", "Client send buffer full, disconnecting", map[string]interface{}{
			"user_id":         c.UserID.String(),
			"conversation_id": c.ConversationID.String(),
		})
		c.closeLocked()
		return false
	}
}

// shutdown stops the write pump, which then closes the connection.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps frames from the websocket connection to the frame handler.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Hub", "Unexpected close", map[string]interface{}{
					"user_id": c.UserID.String(),
					"error":   err.Error(),
				})
			}
			return
		}
		if messageType == websocket.TextMessage && c.onFrame != nil {
			c.onFrame(data)
		}
	}
}

// writePump pumps frames to the websocket connection, one frame per message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
