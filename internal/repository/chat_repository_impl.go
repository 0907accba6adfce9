package repository

import (
	"errors"

	"online-booking-backend/internal/domain/entity"
	domainRepo "online-booking-backend/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type chatSessionRepository struct{}

func NewChatSessionRepository() domainRepo.ChatSessionRepository {
	return &chatSessionRepository{}
}

func (r *chatSessionRepository) Create(db *gorm.DB, session *entity.ChatSession) error {
	return db.Create(session).Error
}

func (r *chatSessionRepository) FindByReportID(db *gorm.DB, reportID string) (*entity.ChatSession, error) {
	var session entity.ChatSession
	err := db.Where("report_id = ?", reportID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *chatSessionRepository) FindByUserID(db *gorm.DB, userID uuid.UUID) ([]entity.ChatSession, error) {
	var sessions []entity.ChatSession
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *chatSessionRepository) ExistsByReportID(db *gorm.DB, reportID string) (bool, error) {
	var count int64
	err := db.Model(&entity.ChatSession{}).Where("report_id = ?", reportID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *chatSessionRepository) Update(db *gorm.DB, session *entity.ChatSession) error {
	return db.Save(session).Error
}

type chatMessageRepository struct{}

func NewChatMessageRepository() domainRepo.ChatMessageRepository {
	return &chatMessageRepository{}
}

func (r *chatMessageRepository) Create(db *gorm.DB, message *entity.ChatMessage) error {
	return db.Create(message).Error
}

func (r *chatMessageRepository) FindBySessionID(db *gorm.DB, sessionID uuid.UUID) ([]entity.ChatMessage, error) {
	var messages []entity.ChatMessage
	err := db.Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
