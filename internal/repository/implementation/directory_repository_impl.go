package implementation

import (
	"context"
	"errors"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/mapper"
	"marketplace-chat-be/internal/model"
	"marketplace-chat-be/internal/repository/contract"
	"marketplace-chat-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ListingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewListingRepository(db *gorm.DB) contract.ListingRepository {
	return &ListingRepositoryImpl{db: db, mapper: mapper.NewChatMapper()}
}

func (r *ListingRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Listing, error) {
	var m model.Listing
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError("find listing", err)
	}
	return r.mapper.ListingToEntity(&m), nil
}

type ProfileRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewProfileRepository(db *gorm.DB) contract.ProfileRepository {
	return &ProfileRepositoryImpl{db: db, mapper: mapper.NewChatMapper()}
}

func (r *ProfileRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Profile, error) {
	var models []*model.Profile
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, translateError("list profiles", err)
	}
	entities := make([]*entity.Profile, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ProfileToEntity(m)
	}
	return entities, nil
}
