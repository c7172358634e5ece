package model

import (
	"time"

	"github.com/google/uuid"
)

// Listing is owned by the listings module; this service only reads it.
type Listing struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index"` // Seller
	Title     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Listing) TableName() string {
	return "listings"
}
