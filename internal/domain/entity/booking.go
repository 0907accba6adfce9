package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusRescheduled    BookingStatus = "rescheduled"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusCompleted      BookingStatus = "completed"
)

// ParseBookingStatus converts a raw string into a known BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingStatusPendingPayment, BookingStatusConfirmed, BookingStatusRescheduled,
		BookingStatusCancelled, BookingStatusCompleted:
		return BookingStatus(s), true
	}
	return "", false
}

var (
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrNegativePrice     = errors.New("booking price must not be negative")
	ErrMissingIntentRef  = errors.New("payment intent reference is required")
)

// Booking represents a time-boxed service reservation. Status is mutated only
// through the transition methods below; every persisted mutation goes through
// the versioned update in the repository so concurrent writers cannot clobber
// each other.
type Booking struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OwnerID            uuid.UUID       `gorm:"type:uuid;not null;index:idx_bookings_owner_status" json:"owner_id"`
	StartTime          time.Time       `gorm:"not null;index" json:"start_time"`
	DurationMinutes    int             `gorm:"not null" json:"duration_minutes"`
	ServiceName        string          `gorm:"type:varchar(255);not null" json:"service_name"`
	ServiceDescription string          `gorm:"type:text" json:"service_description"`
	Notes              string          `gorm:"type:text" json:"notes"`
	Price              decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Currency           string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status             BookingStatus   `gorm:"type:booking_status;not null;default:'pending_payment';index:idx_bookings_owner_status" json:"status"`
	PaymentIntentID    *string         `gorm:"type:varchar(255);uniqueIndex" json:"payment_intent_id,omitempty"`
	Version            int64           `gorm:"not null;default:1" json:"version"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Owner User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

// NewBooking builds a booking in pending_payment. It validates the window and
// price; overlap checking belongs to the conflict detector, not here.
func NewBooking(ownerID uuid.UUID, window Window, price decimal.Decimal, currency, serviceName, serviceDescription, notes string) (*Booking, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}

	return &Booking{
		OwnerID:            ownerID,
		StartTime:          window.Start,
		DurationMinutes:    window.DurationMinutes,
		ServiceName:        serviceName,
		ServiceDescription: serviceDescription,
		Notes:              notes,
		Price:              price,
		Currency:           currency,
		Status:             BookingStatusPendingPayment,
		Version:            1,
	}, nil
}

// Window returns the booked interval as a value.
func (b *Booking) Window() Window {
	return Window{Start: b.StartTime, DurationMinutes: b.DurationMinutes}
}

// IsActive reports whether the booking still occupies its owner's calendar.
func (b *Booking) IsActive() bool {
	switch b.Status {
	case BookingStatusPendingPayment, BookingStatusConfirmed, BookingStatusRescheduled:
		return true
	}
	return false
}

// IsTerminal reports whether the booking has no outgoing transitions left.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingStatusCancelled || b.Status == BookingStatusCompleted
}

// IsPaid reports whether the booking reached a payment-backed state.
func (b *Booking) IsPaid() bool {
	switch b.Status {
	case BookingStatusConfirmed, BookingStatusRescheduled, BookingStatusCompleted:
		return true
	}
	return false
}

// Confirm moves pending_payment to confirmed and records the gateway intent
// reference. Any other source state is rejected.
func (b *Booking) Confirm(intentRef string) error {
	if b.Status != BookingStatusPendingPayment {
		return ErrInvalidTransition
	}
	if intentRef == "" {
		return ErrMissingIntentRef
	}
	b.Status = BookingStatusConfirmed
	b.PaymentIntentID = &intentRef
	return nil
}

// MoveWindow applies a reschedule: allowed from confirmed or rescheduled,
// touches only the window and status. Price and payment intent stay as they
// are — a price change requires cancel plus re-create.
func (b *Booking) MoveWindow(window Window) error {
	if b.Status != BookingStatusConfirmed && b.Status != BookingStatusRescheduled {
		return ErrInvalidTransition
	}
	if err := window.Validate(); err != nil {
		return err
	}
	b.StartTime = window.Start
	b.DurationMinutes = window.DurationMinutes
	b.Status = BookingStatusRescheduled
	return nil
}

// Cancel is allowed from any non-terminal state. A pending booking drops its
// intent reference; a paid booking keeps it so the manual refund can be traced.
func (b *Booking) Cancel() error {
	if b.IsTerminal() {
		return ErrInvalidTransition
	}
	if b.Status == BookingStatusPendingPayment {
		b.PaymentIntentID = nil
	}
	b.Status = BookingStatusCancelled
	return nil
}

// Complete is allowed from confirmed or rescheduled, and only once the booked
// window has fully elapsed. Completion is never backdated.
func (b *Booking) Complete(now time.Time) error {
	if b.Status != BookingStatusConfirmed && b.Status != BookingStatusRescheduled {
		return ErrInvalidTransition
	}
	if now.Before(b.Window().End()) {
		return ErrInvalidTransition
	}
	b.Status = BookingStatusCompleted
	return nil
}
