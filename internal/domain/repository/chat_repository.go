package repository

import (
	"online-booking-backend/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatSessionRepository interface {
	Create(db *gorm.DB, session *entity.ChatSession) error
	FindByReportID(db *gorm.DB, reportID string) (*entity.ChatSession, error)
	FindByUserID(db *gorm.DB, userID uuid.UUID) ([]entity.ChatSession, error)
	ExistsByReportID(db *gorm.DB, reportID string) (bool, error)
	Update(db *gorm.DB, session *entity.ChatSession) error
}

type ChatMessageRepository interface {
	Create(db *gorm.DB, message *entity.ChatMessage) error
	FindBySessionID(db *gorm.DB, sessionID uuid.UUID) ([]entity.ChatMessage, error)
}
