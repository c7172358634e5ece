package contract

import (
	"context"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/repository/specification"
)

type ConversationRepository interface {
	// Create fails with entity.ErrUniqueViolation when (listing_id, buyer_id) already exists.
	Create(ctx context.Context, conversation *entity.Conversation) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
}
