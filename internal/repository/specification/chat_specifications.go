package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByListingAndBuyer matches the natural key of a conversation.
type ByListingAndBuyer struct {
	ListingID uuid.UUID
	BuyerID   uuid.UUID
}

func (s ByListingAndBuyer) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("listing_id = ? AND buyer_id = ?", s.ListingID, s.BuyerID)
}

// ByParticipant matches conversations where the user is buyer or seller.
type ByParticipant struct {
	UserID uuid.UUID
}

func (s ByParticipant) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("(buyer_id = ? OR seller_id = ?)", s.UserID, s.UserID)
}

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

// Chronological is the total order over messages: created_at, then id.
type Chronological struct{}

func (s Chronological) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}
