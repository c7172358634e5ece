package model

import (
	"github.com/google/uuid"
)

type Profile struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName    string    `gorm:"type:varchar(255)"`
	CompanyName string    `gorm:"type:varchar(255)"`
}

func (Profile) TableName() string {
	return "profiles"
}
