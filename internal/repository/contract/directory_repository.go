package contract

import (
	"context"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/repository/specification"
)

// ListingRepository and ProfileRepository read rows owned by other modules.

type ListingRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Listing, error)
}

type ProfileRepository interface {
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Profile, error)
}
