package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type SendChatMessageRequest struct {
	Message string `json:"message" validate:"required,min=1,max=4000"`
}

// Response DTOs

type ChatMessageResponse struct {
	ID         uuid.UUID `json:"id"`
	SenderType string    `json:"sender_type"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type ChatSessionResponse struct {
	ID        uuid.UUID `json:"id"`
	ReportID  string    `json:"report_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatReplyResponse struct {
	Session ChatSessionResponse `json:"session"`
	Reply   ChatMessageResponse `json:"reply"`
}

type ChatHistoryResponse struct {
	Session  ChatSessionResponse   `json:"session"`
	Messages []ChatMessageResponse `json:"messages"`
}

type ChatSessionListResponse struct {
	Sessions []ChatSessionResponse `json:"sessions"`
	Total    int                   `json:"total"`
}
