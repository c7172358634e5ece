package websocket

import (
	"sync"

	"marketplace-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Hub tracks open chat connections per conversation. Message delivery does not
// go through the hub: every connection has its own realtime subscription.
type Hub struct {
	// Registered clients: ConversationID -> set of clients (tabs, devices, both parties)
	clients map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once

	// Lock for safe map access
	mu sync.RWMutex

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		logger:     log,
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.ConversationID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.ConversationID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{
				"user_id":         client.UserID.String(),
				"conversation_id": client.ConversationID.String(),
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.ConversationID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					client.shutdown()
				}
				if len(set) == 0 {
					delete(h.clients, client.ConversationID)
				}
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client unregistered", map[string]interface{}{
				"user_id":         client.UserID.String(),
				"conversation_id": client.ConversationID.String(),
			})

		case <-h.stop:
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					client.shutdown()
				}
			}
			h.clients = make(map[uuid.UUID]map[*Client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// Register returns false once the hub is shut down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
		c.shutdown()
	}
}

// Count is the number of open connections viewing a conversation.
func (h *Hub) Count(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[conversationID])
}

// Total is the number of open connections.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Shutdown disconnects every client and stops Run.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.stopped
}
