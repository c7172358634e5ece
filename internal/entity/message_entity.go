package entity

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	SenderId       uuid.UUID
	Content        string
	ClientNonce    string
	CreatedAt      time.Time
}

// Before orders messages by (created_at, id).
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return bytes.Compare(m.Id[:], other.Id[:]) < 0
}

// SortMessages sorts in place, oldest first.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Before(messages[j])
	})
}
