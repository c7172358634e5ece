package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/pkg/logger"
	"marketplace-chat-be/internal/repository/memory"
	"marketplace-chat-be/internal/repository/specification"
	"marketplace-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const conversationModule = "ConversationResolver"

type IConversationService interface {
	// Resolve returns the single conversation of (listingId, callerId), creating it on first contact.
	Resolve(ctx context.Context, listingId, sellerId, callerId uuid.UUID) (uuid.UUID, error)
	Get(ctx context.Context, conversationId, callerId uuid.UUID) (*entity.ConversationDetail, error)
	ListForUser(ctx context.Context, callerId uuid.UUID) ([]*entity.ConversationDetail, error)
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.ConversationCache
	logger     logger.ILogger
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	cache *memory.ConversationCache,
	log logger.ILogger,
) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		cache:      cache,
		logger:     log,
	}
}

func (s *conversationService) Resolve(ctx context.Context, listingId, sellerId, callerId uuid.UUID) (uuid.UUID, error) {
	if callerId == uuid.Nil {
		return uuid.Nil, entity.ErrUnauthorized
	}
	if listingId == uuid.Nil || sellerId == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: listing_id and seller_id are required", entity.ErrInvalidArgument)
	}
	if callerId == sellerId {
		return uuid.Nil, entity.ErrSelfConversation
	}

	if id, found := s.cache.Get(listingId, callerId); found {
		return id, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	byPair := specification.ByListingAndBuyer{ListingID: listingId, BuyerID: callerId}

	// 1. Fast path
	existing, err := uow.ConversationRepository().FindOne(ctx, byPair)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return s.remember(existing), nil
	}

	// 2. First contact: the seller must own the listing
	listing, err := uow.ListingRepository().FindOne(ctx, specification.ByID{ID: listingId})
	if err != nil {
		return uuid.Nil, err
	}
	if listing == nil {
		return uuid.Nil, fmt.Errorf("%w: listing %s", entity.ErrNotFound, listingId)
	}
	if listing.UserId != sellerId {
		return uuid.Nil, fmt.Errorf("%w: seller does not own listing", entity.ErrInvalidArgument)
	}

	// 3. Insert, losing a concurrent race is fine
	conversation := &entity.Conversation{
		ListingId: listingId,
		BuyerId:   callerId,
		SellerId:  sellerId,
	}
	err = uow.ConversationRepository().Create(ctx, conversation)
	if err == nil {
		s.logger.Info(conversationModule, "Conversation created", map[string]interface{}{
			"conversation_id": conversation.Id.String(),
			"listing_id":      listingId.String(),
		})
		return s.remember(conversation), nil
	}
	if !errors.Is(err, entity.ErrUniqueViolation) {
		s.logger.Error(conversationModule, "Failed to create conversation", map[string]interface{}{
			"listing_id": listingId.String(),
			"error":      err.Error(),
		})
		return uuid.Nil, err
	}

	winner, err := uow.ConversationRepository().FindOne(ctx, byPair)
	if err != nil {
		return uuid.Nil, err
	}
	if winner == nil {
		// The constraint fired but the row is not visible: nothing sane to return.
		return uuid.Nil, fmt.Errorf("%w: conversation vanished after unique violation", entity.ErrPersistence)
	}
	s.logger.Info(conversationModule, "Recovered from concurrent conversation insert", map[string]interface{}{
		"conversation_id": winner.Id.String(),
	})
	return s.remember(winner), nil
}

func (s *conversationService) remember(c *entity.Conversation) uuid.UUID {
	s.cache.Save(c.ListingId, c.BuyerId, c.Id)
	return c.Id
}

func (s *conversationService) Get(ctx context.Context, conversationId, callerId uuid.UUID) (*entity.ConversationDetail, error) {
	if callerId == uuid.Nil {
		return nil, entity.ErrUnauthorized
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("%w: conversation %s", entity.ErrNotFound, conversationId)
	}
	if !conversation.IsParticipant(callerId) {
		return nil, entity.ErrForbidden
	}

	details, err := s.describe(ctx, uow, callerId, []*entity.Conversation{conversation})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

func (s *conversationService) ListForUser(ctx context.Context, callerId uuid.UUID) ([]*entity.ConversationDetail, error) {
	if callerId == uuid.Nil {
		return nil, entity.ErrUnauthorized
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.ByParticipant{UserID: callerId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}
	if len(conversations) == 0 {
		return make([]*entity.ConversationDetail, 0), nil
	}
	return s.describe(ctx, uow, callerId, conversations)
}

// describe joins profiles in one query, then listings and message counts per conversation.
func (s *conversationService) describe(ctx context.Context, uow unitofwork.UnitOfWork, callerId uuid.UUID, conversations []*entity.Conversation) ([]*entity.ConversationDetail, error) {
	userIds := make([]uuid.UUID, 0, len(conversations)*2)
	for _, c := range conversations {
		userIds = append(userIds, c.BuyerId, c.SellerId)
	}
	profiles, err := uow.ProfileRepository().FindAll(ctx, specification.ByIDs{IDs: userIds})
	if err != nil {
		return nil, err
	}
	profileById := make(map[uuid.UUID]*entity.Profile, len(profiles))
	for _, p := range profiles {
		profileById[p.Id] = p
	}

	listingById := make(map[uuid.UUID]*entity.Listing)
	result := make([]*entity.ConversationDetail, 0, len(conversations))
	for _, c := range conversations {
		listing, seen := listingById[c.ListingId]
		if !seen {
			listing, err = uow.ListingRepository().FindOne(ctx, specification.ByID{ID: c.ListingId})
			if err != nil {
				return nil, err
			}
			listingById[c.ListingId] = listing
		}

		messageCount, err := uow.MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: c.Id})
		if err != nil {
			return nil, err
		}

		result = append(result, &entity.ConversationDetail{
			Conversation:    *c,
			Listing:         listing,
			Buyer:           profileById[c.BuyerId],
			Seller:          profileById[c.SellerId],
			CounterpartName: profileById[c.CounterpartOf(callerId)].DisplayName(),
			MessageCount:    messageCount,
		})
	}
	return result, nil
}
