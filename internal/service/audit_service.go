package service

import (
	"online-booking-backend/internal/domain/entity"
	"online-booking-backend/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuditService interface {
	Record(tx *gorm.DB, userID *uuid.UUID, action string, metadata entity.JSON) error
	RecordBookingTransition(tx *gorm.DB, userID *uuid.UUID, action string, booking *entity.Booking, fromStatus entity.BookingStatus) error
}

type auditService struct {
	log       *logrus.Logger
	auditRepo repository.AuditLogRepository
}

func NewAuditService(log *logrus.Logger, auditRepo repository.AuditLogRepository) AuditService {
	return &auditService{
		log:       log,
		auditRepo: auditRepo,
	}
}

func (s *auditService) Record(tx *gorm.DB, userID *uuid.UUID, action string, metadata entity.JSON) error {
	auditLog := &entity.AuditLog{
		UserID:   userID,
		Action:   action,
		Metadata: metadata,
	}

	if err := s.auditRepo.Create(tx, auditLog); err != nil {
		s.log.Warnf("Failed to create audit log: %+v", err)
		return err
	}
	return nil
}

// RecordBookingTransition writes a lifecycle entry for a booking mutation.
// Written in the same transaction as the mutation so the trail never shows a
// transition that did not commit.
func (s *auditService) RecordBookingTransition(tx *gorm.DB, userID *uuid.UUID, action string, booking *entity.Booking, fromStatus entity.BookingStatus) error {
	metadata := entity.JSON{
		"booking_id":  booking.ID.String(),
		"from_status": string(fromStatus),
		"to_status":   string(booking.Status),
		"version":     booking.Version,
	}
	if booking.PaymentIntentID != nil {
		metadata["payment_intent_id"] = *booking.PaymentIntentID
	}

	return s.Record(tx, userID, action, metadata)
}
