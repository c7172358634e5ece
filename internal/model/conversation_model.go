package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation rows are never updated or deleted. (listing_id, buyer_id) is the natural key.
type Conversation struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ListingId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_listing_buyer,priority:1"`
	BuyerId   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_listing_buyer,priority:2;index:idx_conversations_buyer"`
	SellerId  uuid.UUID `gorm:"type:uuid;not null;index:idx_conversations_seller;check:chk_conversations_distinct_parties,buyer_id <> seller_id"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = Now()
	}
	return nil
}
