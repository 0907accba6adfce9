package entity

import (
	"time"

	"github.com/google/uuid"
)

// MessageSenderType identifies who authored a chat message
type MessageSenderType string

const (
	SenderTypeUser MessageSenderType = "user"
	SenderTypeAI   MessageSenderType = "ai"
)

// ChatMessage is a single message within a support chat session
type ChatMessage struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"session_id"`
	SenderType MessageSenderType `gorm:"type:varchar(10);not null" json:"sender_type"`
	Content    string            `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time         `gorm:"autoCreateTime;index" json:"created_at"`

	// Relationships
	Session ChatSession `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
