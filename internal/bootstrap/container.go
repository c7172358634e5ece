package bootstrap

import (
	"context"
	"fmt"
	"log"

	"marketplace-chat-be/internal/chatsession"
	"marketplace-chat-be/internal/config"
	"marketplace-chat-be/internal/controller"
	"marketplace-chat-be/internal/handler"
	"marketplace-chat-be/internal/pkg/logger"
	"marketplace-chat-be/internal/realtime"
	"marketplace-chat-be/internal/repository/memory"
	"marketplace-chat-be/internal/repository/unitofwork"
	"marketplace-chat-be/internal/service"
	"marketplace-chat-be/internal/websocket"

	pktNats "marketplace-chat-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ConversationController controller.IConversationController

	// WebSockets
	ChatWsHandler *handler.ChatWsHandler
	WebSocketHub  *websocket.Hub

	// Exposed for tools and tests
	ConversationService service.IConversationService
	MessageService      service.IMessageService
	Fanout              realtime.Fanout

	sysLogger      logger.ILogger
	realtimeLogger logger.ILogger
}

// NewFanout builds the configured fan-out driver.
func NewFanout(cfg config.RealtimeConfig) (realtime.Fanout, error) {
	switch cfg.Driver {
	case "memory", "":
		return realtime.NewMemoryFanout(cfg.BufferSize), nil

	case "nats":
		client, err := pktNats.NewClient(cfg.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		return realtime.NewNatsFanout(client), nil

	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return realtime.NewRedisFanout(rdb), nil

	default:
		return nil, fmt.Errorf("unsupported fan-out driver %q", cfg.Driver)
	}
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	realtimeLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogFilePath)

	// 2. Fan-out
	fanout, err := NewFanout(cfg.Realtime)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using fan-out driver: %s", cfg.Realtime.Driver)

	// 3. Services
	conversationCache := memory.NewConversationCache(cfg.Chat.ConversationTTL)
	conversationService := service.NewConversationService(uowFactory, conversationCache, sysLogger)
	messageService := service.NewMessageService(uowFactory, service.NewPublisherService(fanout), sysLogger)

	// 4. Realtime
	bridge := realtime.NewBridge(fanout, realtime.Config{BufferSize: cfg.Realtime.BufferSize}, realtimeLogger)
	wsHub := websocket.NewHub(realtimeLogger)
	go wsHub.Run()

	chatHandler := handler.NewChatWsHandler(
		conversationService,
		messageService,
		chatsession.NewRealtimeBridge(bridge),
		wsHub,
		cfg.Auth.JwtSecret,
		cfg.Chat.OperationTimeout,
		realtimeLogger,
	)

	// 5. Controllers
	return &Container{
		ConversationController: controller.NewConversationController(conversationService, messageService, cfg.Chat.OperationTimeout),
		ChatWsHandler:          chatHandler,
		WebSocketHub:           wsHub,
		ConversationService:    conversationService,
		MessageService:         messageService,
		Fanout:                 fanout,
		sysLogger:              sysLogger,
		realtimeLogger:         realtimeLogger,
	}, nil
}

// Close disconnects websocket clients, then releases the fan-out and flushes logs.
func (c *Container) Close() {
	c.WebSocketHub.Shutdown()
	if err := c.Fanout.Close(); err != nil {
		c.sysLogger.Warn("Bootstrap", "Failed to close fan-out", map[string]interface{}{"error": err.Error()})
	}
	c.realtimeLogger.Sync()
	c.sysLogger.Sync()
}
