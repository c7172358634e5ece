package unitofwork

import (
	"context"

	"marketplace-chat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	MessageRepository() contract.MessageRepository
	ListingRepository() contract.ListingRepository
	ProfileRepository() contract.ProfileRepository
}
