package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message rows are append-only.
type Message struct {
	Id             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID         `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	SenderId       uuid.UUID         `gorm:"type:uuid;not null"`
	Content        string            `gorm:"type:text;not null"`
	Metadata       datatypes.JSONMap `gorm:"not null"`
	CreatedAt      time.Time         `gorm:"not null;index:idx_messages_conversation_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns a time-ordered id and the insertion timestamp.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.Id == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.Id = id
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = Now()
	}
	if m.Metadata == nil {
		m.Metadata = datatypes.JSONMap{}
	}
	return nil
}
