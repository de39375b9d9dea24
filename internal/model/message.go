package model

import (
	"time"

	"gorm.io/gorm"
)

type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Username  string    `gorm:"type:text;not null" json:"username"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// AfterFind normalizes timestamps read back from the driver to UTC.
func (m *Message) AfterFind(tx *gorm.DB) error {
	m.CreatedAt = m.CreatedAt.UTC()
	return nil
}
