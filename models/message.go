package models

import (
	"time"
)

const (
	MessageTypeText  = "text"
	MessageTypeFile  = "file"
	MessageTypeImage = "image"
)

type Message struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ConversationKey string    `gorm:"size:512;not null;index:idx_conversation_created" json:"conversation_key"`
	Sender          string    `gorm:"size:255;not null" json:"sender"`
	Receiver        string    `gorm:"size:255;not null;index" json:"receiver"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	Type            string    `gorm:"size:10;default:'text'" json:"type"` // text, file, image
	Read            bool      `gorm:"default:false" json:"read"`
	CreatedAt       time.Time `gorm:"index:idx_conversation_created" json:"created_at"`
}

// ValidMessageType reports whether t is one of the supported message types.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeFile, MessageTypeImage:
		return true
	}
	return false
}
