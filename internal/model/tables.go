package model

import (
	"time"

	"gorm.io/gorm"
)

// Now is the store clock, truncated to the precision Postgres keeps so that
// a row read back compares equal to the row that was written.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Tables lists every model owned by the chat schema, in dependency order.
func Tables() []interface{} {
	return []interface{}{
		&Profile{},
		&Listing{},
		&Conversation{},
		&Message{},
	}
}

// Migrate creates or updates the chat tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Tables()...)
}
