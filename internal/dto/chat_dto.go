package dto

import (
	"time"

	"marketplace-chat-be/internal/entity"

	"github.com/google/uuid"
)

type ResolveConversationRequest struct {
	ListingId uuid.UUID `json:"listing_id" validate:"required"`
	SellerId  uuid.UUID `json:"seller_id" validate:"required"`
}

type ResolveConversationResponse struct {
	Id uuid.UUID `json:"id"`
}

type ParticipantResponse struct {
	Id          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

type ConversationResponse struct {
	Id              uuid.UUID           `json:"id"`
	ListingId       uuid.UUID           `json:"listing_id"`
	ListingTitle    string              `json:"listing_title"`
	Buyer           ParticipantResponse `json:"buyer"`
	Seller          ParticipantResponse `json:"seller"`
	CounterpartName string              `json:"counterpart_name"`
	MessageCount    int64               `json:"message_count"`
	CreatedAt       time.Time           `json:"created_at"`
}

type SendMessageRequest struct {
	Content     string `json:"content" validate:"required,max=4000"`
	ClientNonce string `json:"client_nonce" validate:"omitempty,max=64"`
}

type MessageResponse struct {
	Id             uuid.UUID `json:"id"`
	ConversationId uuid.UUID `json:"conversation_id"`
	SenderId       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	ClientNonce    string    `json:"client_nonce,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewMessageResponse(m entity.Message) MessageResponse {
	return MessageResponse{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		SenderId:       m.SenderId,
		Content:        m.Content,
		ClientNonce:    m.ClientNonce,
		CreatedAt:      m.CreatedAt,
	}
}

func NewMessageResponses(messages []entity.Message) []MessageResponse {
	result := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		result = append(result, NewMessageResponse(m))
	}
	return result
}

func NewConversationResponse(d *entity.ConversationDetail) ConversationResponse {
	res := ConversationResponse{
		Id:              d.Conversation.Id,
		ListingId:       d.Conversation.ListingId,
		Buyer:           ParticipantResponse{Id: d.Conversation.BuyerId, DisplayName: d.Buyer.DisplayName()},
		Seller:          ParticipantResponse{Id: d.Conversation.SellerId, DisplayName: d.Seller.DisplayName()},
		CounterpartName: d.CounterpartName,
		MessageCount:    d.MessageCount,
		CreatedAt:       d.Conversation.CreatedAt,
	}
	if d.Listing != nil {
		res.ListingTitle = d.Listing.Title
	}
	return res
}

// Websocket frames

const (
	FrameReady        = "ready"
	FrameMessages     = "messages"
	FrameNotice       = "notice"
	FrameConnectivity = "connectivity"
	FrameError        = "error"

	FrameSend = "send"
)

type OutboundFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type InboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type ReadyFrame struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	Degraded       bool      `json:"degraded"`
}

type NoticeFrame struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Input     string `json:"input"`
}

type ConnectivityFrame struct {
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}
