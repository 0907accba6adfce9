package service

import (
	"online-booking-backend/internal/domain/entity"
	"online-booking-backend/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConflictDetector decides whether a proposed window collides with an
// owner's existing active bookings. The comparison itself is pure; callers
// must run HasOverlap inside the same transaction that writes the booking so
// the check and the insert see one snapshot.
type ConflictDetector struct {
	bookingRepo repository.BookingRepository
}

func NewConflictDetector(bookingRepo repository.BookingRepository) *ConflictDetector {
	return &ConflictDetector{bookingRepo: bookingRepo}
}

// HasOverlap reports whether window intersects any active booking of the
// owner. excludeBookingID skips the booking being rescheduled. Contention is
// naturally partitioned per owner, so the scan needs no global lock.
func (d *ConflictDetector) HasOverlap(db *gorm.DB, ownerID uuid.UUID, window entity.Window, excludeBookingID *uuid.UUID) (bool, error) {
	active, err := d.bookingRepo.FindActiveByOwner(db, ownerID)
	if err != nil {
		return false, err
	}

	for i := range active {
		if excludeBookingID != nil && active[i].ID == *excludeBookingID {
			continue
		}
		if window.Overlaps(active[i].Window()) {
			return true, nil
		}
	}
	return false, nil
}
