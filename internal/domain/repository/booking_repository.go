package repository

import (
	"errors"
	"time"

	"online-booking-backend/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleVersion signals a lost optimistic-concurrency race: the stored
// version no longer matches the version the caller observed. Always safe to
// retry by re-reading.
var ErrStaleVersion = errors.New("booking was modified concurrently, re-read and retry")

type BookingRepository interface {
	Create(db *gorm.DB, booking *entity.Booking) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Booking, error)
	FindByOwnerID(db *gorm.DB, ownerID uuid.UUID) ([]entity.Booking, error)
	FindByOwnerAndStatus(db *gorm.DB, ownerID uuid.UUID, status entity.BookingStatus) ([]entity.Booking, error)
	// FindActiveByOwner returns bookings in pending_payment, confirmed or
	// rescheduled — the set the conflict detector scans.
	FindActiveByOwner(db *gorm.DB, ownerID uuid.UUID) ([]entity.Booking, error)
	FindByPaymentIntentID(db *gorm.DB, intentRef string) (*entity.Booking, error)
	// FindStalePendingWithIntent returns pending_payment bookings that already
	// hold an intent reference and were last touched before cutoff. These are
	// the candidates for gateway reconciliation.
	FindStalePendingWithIntent(db *gorm.DB, cutoff time.Time) ([]entity.Booking, error)
	// UpdateWithVersion persists the booking only if the stored row still has
	// expectedVersion; otherwise ErrStaleVersion. On success the booking's
	// Version field is advanced to expectedVersion+1.
	UpdateWithVersion(db *gorm.DB, booking *entity.Booking, expectedVersion int64) error
	// Delete removes the row. Administrative path only — it bypasses the state
	// machine and is never reconciled against the gateway.
	Delete(db *gorm.DB, id uuid.UUID) error
}
