package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-chat-be/internal/chatsession"
	"marketplace-chat-be/internal/model"
	"marketplace-chat-be/internal/pkg/logger"
	"marketplace-chat-be/internal/pkg/serverutils"
	"marketplace-chat-be/internal/realtime"
	"marketplace-chat-be/internal/repository/memory"
	"marketplace-chat-be/internal/repository/unitofwork"
	"marketplace-chat-be/internal/service"
	internalWS "marketplace-chat-be/internal/websocket"
	"marketplace-chat-be/pkg/database"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "ws-secret"

func signToken(t *testing.T, user uuid.UUID) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": user.String()}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestUpgradeHandshake(t *testing.T) {
	db, err := database.NewInMemoryDB()
	require.NoError(t, err)
	require.NoError(t, model.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	buyerId, sellerId, strangerId := uuid.New(), uuid.New(), uuid.New()
	listing := model.Listing{Id: uuid.New(), UserId: sellerId, Title: "EUR alused 120 tk"}
	require.NoError(t, db.Create(&listing).Error)

	nop := logger.NewNopLogger()
	fanout := realtime.NewMemoryFanout(16)
	t.Cleanup(func() { fanout.Close() })
	uow := unitofwork.NewRepositoryFactory(db)
	conversations := service.NewConversationService(uow, memory.NewConversationCache(time.Minute), nop)
	messages := service.NewMessageService(uow, service.NewPublisherService(fanout), nop)

	conversationId, err := conversations.Resolve(context.Background(), listing.Id, sellerId, buyerId)
	require.NoError(t, err)

	hub := internalWS.NewHub(nop)
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	h := NewChatWsHandler(
		conversations,
		messages,
		chatsession.NewRealtimeBridge(realtime.NewBridge(fanout, realtime.Config{}, nop)),
		hub,
		testSecret,
		5*time.Second,
		nop,
	)
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	h.RegisterRoutes(app.Group("/api"))

	path := "/api/chat/v1/conversations/" + conversationId.String() + "/ws"

	tests := []struct {
		name   string
		target string
		token  string
		want   int
	}{
		{"missing token", path, "", http.StatusUnauthorized},
		{"bad signature", path, "not-a-jwt", http.StatusUnauthorized},
		{"malformed id", "/api/chat/v1/conversations/abc/ws", signToken(t, buyerId), http.StatusBadRequest},
		{"unknown conversation", "/api/chat/v1/conversations/" + uuid.NewString() + "/ws", signToken(t, buyerId), http.StatusNotFound},
		{"not a participant", path, signToken(t, strangerId), http.StatusForbidden},
		{"participant without upgrade", path, signToken(t, sellerId), http.StatusUpgradeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.target
			if tt.token != "" {
				target += "?token=" + tt.token
			}
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
