package mapper

import (
	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/model"

	"gorm.io/datatypes"
)

const metadataClientNonce = "client_nonce"

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Conversation Mappers

func (m *ChatMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}
	return &entity.Conversation{
		Id:        c.Id,
		ListingId: c.ListingId,
		BuyerId:   c.BuyerId,
		SellerId:  c.SellerId,
		CreatedAt: c.CreatedAt,
	}
}

func (m *ChatMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}
	return &model.Conversation{
		Id:        c.Id,
		ListingId: c.ListingId,
		BuyerId:   c.BuyerId,
		SellerId:  c.SellerId,
		CreatedAt: c.CreatedAt,
	}
}

// Message Mappers

func (m *ChatMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	var nonce string
	if v, ok := msg.Metadata[metadataClientNonce].(string); ok {
		nonce = v
	}

	return &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Content:        msg.Content,
		ClientNonce:    nonce,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	metadata := datatypes.JSONMap{}
	if msg.ClientNonce != "" {
		metadata[metadataClientNonce] = msg.ClientNonce
	}

	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Content:        msg.Content,
		Metadata:       metadata,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) MessagesToEntities(models []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(models))
	for i, msg := range models {
		entities[i] = m.MessageToEntity(msg)
	}
	return entities
}

// Read-only Mappers

func (m *ChatMapper) ListingToEntity(l *model.Listing) *entity.Listing {
	if l == nil {
		return nil
	}
	return &entity.Listing{
		Id:        l.Id,
		UserId:    l.UserId,
		Title:     l.Title,
		CreatedAt: l.CreatedAt,
	}
}

func (m *ChatMapper) ProfileToEntity(p *model.Profile) *entity.Profile {
	if p == nil {
		return nil
	}
	return &entity.Profile{
		Id:          p.Id,
		FullName:    p.FullName,
		CompanyName: p.CompanyName,
	}
}
