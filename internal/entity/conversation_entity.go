package entity

import (
	"time"

	"github.com/google/uuid"
)

// UnknownParticipantName is shown when a profile has neither a company nor a full name.
const UnknownParticipantName = "Teadmata"

type Conversation struct {
	Id        uuid.UUID
	ListingId uuid.UUID
	BuyerId   uuid.UUID
	SellerId  uuid.UUID
	CreatedAt time.Time
}

// IsParticipant reports whether userId is the buyer or the seller of the conversation.
func (c *Conversation) IsParticipant(userId uuid.UUID) bool {
	if userId == uuid.Nil {
		return false
	}
	return c.BuyerId == userId || c.SellerId == userId
}

// CounterpartOf returns the other participant, or uuid.Nil when userId is not a participant.
func (c *Conversation) CounterpartOf(userId uuid.UUID) uuid.UUID {
	switch userId {
	case c.BuyerId:
		return c.SellerId
	case c.SellerId:
		return c.BuyerId
	default:
		return uuid.Nil
	}
}

type Listing struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Title     string
	CreatedAt time.Time
}

type Profile struct {
	Id          uuid.UUID
	FullName    string
	CompanyName string
}

func (p *Profile) DisplayName() string {
	if p == nil {
		return UnknownParticipantName
	}
	if p.CompanyName != "" {
		return p.CompanyName
	}
	if p.FullName != "" {
		return p.FullName
	}
	return UnknownParticipantName
}

// ConversationDetail is a conversation as seen by one of its participants.
type ConversationDetail struct {
	Conversation    Conversation
	Listing         *Listing
	Buyer           *Profile
	Seller          *Profile
	CounterpartName string
	MessageCount    int64
}
