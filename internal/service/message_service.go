package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/pkg/logger"
	"marketplace-chat-be/internal/repository/specification"
	"marketplace-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const (
	messageModule     = "MessageStore"
	MaxContentLength  = 4000
	MaxClientNonceLen = 64
)

type IMessageService interface {
	// Append persists one message and emits exactly one message-inserted event after commit.
	Append(ctx context.Context, conversationId, senderId uuid.UUID, content, clientNonce string) (*entity.Message, error)
	// List returns every message of the conversation ordered by (created_at, id).
	List(ctx context.Context, conversationId, callerId uuid.UUID) ([]entity.Message, error)
}

type messageService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	logger           logger.ILogger
}

func NewMessageService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	log logger.ILogger,
) IMessageService {
	return &messageService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		logger:           log,
	}
}

func (s *messageService) Append(ctx context.Context, conversationId, senderId uuid.UUID, content, clientNonce string) (*entity.Message, error) {
	if senderId == uuid.Nil {
		return nil, entity.ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is empty", entity.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", entity.ErrInvalidArgument, MaxContentLength)
	}
	if len(clientNonce) > MaxClientNonceLen {
		return nil, fmt.Errorf("%w: client_nonce exceeds %d bytes", entity.ErrInvalidArgument, MaxClientNonceLen)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrPersistence, err)
	}
	defer uow.Rollback()

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		return nil, err
	}
	// An unknown conversation looks the same as someone else's.
	if conversation == nil || !conversation.IsParticipant(senderId) {
		return nil, entity.ErrForbidden
	}

	msg := &entity.Message{
		ConversationId: conversationId,
		SenderId:       senderId,
		Content:        content,
		ClientNonce:    clientNonce,
	}
	if err := uow.MessageRepository().Create(ctx, msg); err != nil {
		s.logger.Error(messageModule, "Failed to insert message", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"error":           err.Error(),
		})
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", entity.ErrPersistence, err)
	}

	// The row is durable; a lost notification is closed by the next list.
	if err := s.publisherService.PublishMessageInserted(ctx, *msg); err != nil {
		s.logger.Warn(messageModule, "Failed to publish message-inserted", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"message_id":      msg.Id.String(),
			"error":           err.Error(),
		})
	}

	return msg, nil
}

func (s *messageService) List(ctx context.Context, conversationId, callerId uuid.UUID) ([]entity.Message, error) {
	if callerId == uuid.Nil {
		return nil, entity.ErrUnauthorized
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		return nil, err
	}
	if conversation == nil || !conversation.IsParticipant(callerId) {
		return nil, entity.ErrForbidden
	}

	rows, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.Chronological{},
	)
	if err != nil {
		return nil, err
	}

	result := make([]entity.Message, 0, len(rows))
	for _, row := range rows {
		result = append(result, *row)
	}
	return result, nil
}
