package realtime

import (
	"context"
	"time"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/pkg/events"

	"github.com/google/uuid"
)

type messagePayload struct {
	Id             uuid.UUID `json:"id"`
	ConversationId uuid.UUID `json:"conversation_id"`
	SenderId       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	ClientNonce    string    `json:"client_nonce,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Topic is the fan-out topic of a conversation.
func Topic(conversationId uuid.UUID) string {
	return conversationId.String()
}

func NewMessageInserted(msg entity.Message) (events.Envelope, error) {
	return events.NewEnvelope(events.MessageInserted, Topic(msg.ConversationId), messagePayload{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Content:        msg.Content,
		ClientNonce:    msg.ClientNonce,
		CreatedAt:      msg.CreatedAt,
	})
}

func DecodeMessage(env events.Envelope) (entity.Message, error) {
	var p messagePayload
	if err := env.Decode(&p); err != nil {
		return entity.Message{}, err
	}
	return entity.Message{
		Id:             p.Id,
		ConversationId: p.ConversationId,
		SenderId:       p.SenderId,
		Content:        p.Content,
		ClientNonce:    p.ClientNonce,
		CreatedAt:      p.CreatedAt,
	}, nil
}

// PublishMessage emits exactly one message-inserted event for msg.
func PublishMessage(ctx context.Context, fanout Fanout, msg entity.Message) error {
	env, err := NewMessageInserted(msg)
	if err != nil {
		return err
	}
	return fanout.Publish(ctx, env)
}
