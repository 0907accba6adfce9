package repository

import (
	"errors"
	"time"

	"online-booking-backend/internal/domain/entity"
	domainRepo "online-booking-backend/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var activeStatuses = []entity.BookingStatus{
	entity.BookingStatusPendingPayment,
	entity.BookingStatusConfirmed,
	entity.BookingStatusRescheduled,
}

type bookingRepository struct{}

func NewBookingRepository() domainRepo.BookingRepository {
	return &bookingRepository{}
}

func (r *bookingRepository) Create(db *gorm.DB, booking *entity.Booking) error {
	return db.Create(booking).Error
}

func (r *bookingRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Booking, error) {
	var booking entity.Booking
	err := db.Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByOwnerID(db *gorm.DB, ownerID uuid.UUID) ([]entity.Booking, error) {
	var bookings []entity.Booking
	err := db.Where("owner_id = ?", ownerID).
		Order("start_time DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) FindByOwnerAndStatus(db *gorm.DB, ownerID uuid.UUID, status entity.BookingStatus) ([]entity.Booking, error) {
	var bookings []entity.Booking
	err := db.Where("owner_id = ? AND status = ?", ownerID, status).
		Order("start_time DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) FindActiveByOwner(db *gorm.DB, ownerID uuid.UUID) ([]entity.Booking, error) {
	var bookings []entity.Booking
	err := db.Where("owner_id = ? AND status IN ?", ownerID, activeStatuses).
		Order("start_time ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) FindByPaymentIntentID(db *gorm.DB, intentRef string) (*entity.Booking, error) {
	var booking entity.Booking
	err := db.Where("payment_intent_id = ?", intentRef).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindStalePendingWithIntent(db *gorm.DB, cutoff time.Time) ([]entity.Booking, error) {
	var bookings []entity.Booking
	err := db.Where("status = ? AND payment_intent_id IS NOT NULL AND updated_at < ?",
		entity.BookingStatusPendingPayment, cutoff).
		Order("updated_at ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateWithVersion is the single write path for booking mutations. The WHERE
// clause on (id, version) makes the update a compare-and-swap: of two
// concurrent writers exactly one matches the row, the other sees zero
// affected rows and gets ErrStaleVersion.
func (r *bookingRepository) UpdateWithVersion(db *gorm.DB, booking *entity.Booking, expectedVersion int64) error {
	result := db.Model(&entity.Booking{}).
		Where("id = ? AND version = ?", booking.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":            booking.Status,
			"start_time":        booking.StartTime,
			"duration_minutes":  booking.DurationMinutes,
			"notes":             booking.Notes,
			"payment_intent_id": booking.PaymentIntentID,
			"version":           expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainRepo.ErrStaleVersion
	}
	booking.Version = expectedVersion + 1
	return nil
}

func (r *bookingRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	return db.Delete(&entity.Booking{}, "id = ?", id).Error
}
