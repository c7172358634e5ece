package contract

import (
	"context"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/repository/specification"
)

// MessageRepository has no update or delete path: messages are append-only.
type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
