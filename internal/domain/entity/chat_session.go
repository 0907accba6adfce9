package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatStatus represents the status of a support chat session
type ChatStatus string

const (
	ChatStatusActive    ChatStatus = "active"
	ChatStatusClosed    ChatStatus = "closed"
	ChatStatusEscalated ChatStatus = "escalated"
)

// ChatSession represents a support conversation keyed by a human-readable
// report ID handed to the customer.
type ChatSession struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ReportID  string     `gorm:"type:varchar(16);uniqueIndex;not null" json:"report_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Status    ChatStatus `gorm:"type:chat_status;not null;default:'active';index" json:"status"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	User     User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Messages []ChatMessage `gorm:"foreignKey:SessionID" json:"messages,omitempty"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// IsOpen reports whether the session still accepts messages.
func (s *ChatSession) IsOpen() bool {
	return s.Status == ChatStatusActive || s.Status == ChatStatusEscalated
}

// Close marks the session closed.
func (s *ChatSession) Close() {
	s.Status = ChatStatusClosed
}

// Escalate hands the session over to a human agent.
func (s *ChatSession) Escalate() {
	s.Status = ChatStatusEscalated
}
