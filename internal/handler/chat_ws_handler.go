package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"marketplace-chat-be/internal/chatsession"
	"marketplace-chat-be/internal/dto"
	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/pkg/logger"
	"marketplace-chat-be/internal/pkg/serverutils"
	"marketplace-chat-be/internal/service"
	internalWS "marketplace-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	moduleName           = "ChatWsHandler"
	localsConversationID = "conversation_id"
	writeWait            = 10 * time.Second
)

// ChatWsHandler serves one ChatSession per websocket connection.
type ChatWsHandler struct {
	conversations service.IConversationService
	messages      service.IMessageService
	bridge        chatsession.Bridge
	hub           *internalWS.Hub
	jwtSecret     string
	timeout       time.Duration
	logger        logger.ILogger
}

func NewChatWsHandler(
	conversations service.IConversationService,
	messages service.IMessageService,
	bridge chatsession.Bridge,
	hub *internalWS.Hub,
	jwtSecret string,
	timeout time.Duration,
	log logger.ILogger,
) *ChatWsHandler {
	return &ChatWsHandler{
		conversations: conversations,
		messages:      messages,
		bridge:        bridge,
		hub:           hub,
		jwtSecret:     jwtSecret,
		timeout:       timeout,
		logger:        log,
	}
}

func (h *ChatWsHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/chat/v1/conversations/:id/ws", h.Upgrade)
}

// Upgrade authenticates and authorizes the handshake before switching protocols,
// so failures are plain HTTP errors.
func (h *ChatWsHandler) Upgrade(c *fiber.Ctx) error {
	userID, err := serverutils.ParseUserToken(serverutils.BearerToken(c), h.jwtSecret)
	if err != nil {
		h.logger.Warn(moduleName, "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return err
	}

	conversationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fmt.Errorf("%w: malformed conversation id", entity.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()
	if _, err := h.conversations.Get(ctx, conversationID, userID); err != nil {
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(serverutils.LocalsUserID, userID)
	c.Locals(localsConversationID, conversationID)
	return websocket.New(h.serve)(c)
}

// chatConn is the state of one websocket connection.
type chatConn struct {
	handler        *ChatWsHandler
	conn           internalWS.Conn
	conversationID uuid.UUID
	client         *internalWS.Client
	session        *chatsession.Session

	sending sync.Mutex // one inbound send at a time per connection
}

func (cc *chatConn) emit(frameType string, data interface{}) {
	payload, err := json.Marshal(dto.OutboundFrame{Type: frameType, Data: data})
	if err != nil {
		cc.handler.logger.Error(moduleName, "Failed to encode frame", map[string]interface{}{"type": frameType, "error": err.Error()})
		return
	}
	cc.client.Enqueue(payload)
}

func (h *ChatWsHandler) serve(conn *websocket.Conn) {
	userID := conn.Locals(serverutils.LocalsUserID).(uuid.UUID)
	conversationID := conn.Locals(localsConversationID).(uuid.UUID)
	details := map[string]interface{}{
		"user_id":         userID.String(),
		"conversation_id": conversationID.String(),
	}

	h.logger.Info(moduleName, "Starting chat session", details)
	h.newChatConn(conn, conversationID, userID).run()
	h.logger.Info(moduleName, "Chat session ended", details)
}

// newChatConn pairs a websocket client with a fresh ChatSession whose view
// updates become outbound frames.
func (h *ChatWsHandler) newChatConn(conn internalWS.Conn, conversationID, userID uuid.UUID) *chatConn {
	cc := &chatConn{handler: h, conn: conn, conversationID: conversationID}
	cc.client = internalWS.NewClient(h.hub, conn, conversationID, userID, cc.handleFrame, h.logger)
	cc.session = chatsession.New(
		chatsession.Config{UserID: userID, Timeout: h.timeout},
		h.messages,
		h.bridge,
		h.logger,
		chatsession.Listener{
			OnMerge: func(added []entity.Message) {
				cc.emit(dto.FrameMessages, dto.NewMessageResponses(added))
			},
			OnNotice: func(n chatsession.Notice) {
				cc.emit(dto.FrameNotice, dto.NoticeFrame{Message: n.Err.Error(), Retryable: n.Retryable, Input: n.Input})
			},
			OnConnectivity: func(degraded bool, err error) {
				frame := dto.ConnectivityFrame{Degraded: degraded}
				if err != nil {
					frame.Error = err.Error()
				}
				cc.emit(dto.FrameConnectivity, frame)
			},
		},
	)
	return cc
}

// run initializes the session and pumps frames until the peer goes away.
func (cc *chatConn) run() {
	defer cc.session.Close()

	if err := cc.session.Initialize(context.Background(), cc.conversationID); err != nil {
		cc.handler.logger.Warn(moduleName, "Failed to initialize chat session", map[string]interface{}{
			"conversation_id": cc.conversationID.String(),
			"error":           err.Error(),
		})
		payload, _ := json.Marshal(dto.OutboundFrame{Type: dto.FrameError, Data: err.Error()})
		cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
		cc.conn.WriteMessage(websocket.TextMessage, payload)
		cc.conn.Close()
		return
	}
	cc.emit(dto.FrameReady, dto.ReadyFrame{ConversationId: cc.conversationID, Degraded: cc.session.Degraded()})

	internalWS.ServeWs(cc.handler.hub, cc.client)
}

// handleFrame runs on the read pump, so frames arrive here in the order the peer sent them.
func (cc *chatConn) handleFrame(data []byte) {
	var frame dto.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != dto.FrameSend {
		cc.handler.logger.Debug(moduleName, "Ignoring unsupported frame", map[string]interface{}{"size": len(data)})
		return
	}

	// Claimed here rather than in the goroutine so a later frame can never
	// overtake an earlier one.
	if !cc.sending.TryLock() {
		cc.rejectBusy(frame.Content)
		return
	}

	// Sending runs off the read loop so pongs keep flowing while the store is slow.
	// An in-flight send is not cancelled by the connection closing.
	go func() {
		defer cc.sending.Unlock()
		cc.session.SetInput(frame.Content)
		cc.session.Send(context.Background())
	}()
}

func (cc *chatConn) rejectBusy(content string) {
	cc.emit(dto.FrameNotice, dto.NoticeFrame{
		Message:   chatsession.ErrSendInProgress.Error(),
		Retryable: true,
		Input:     content,
	})
}
