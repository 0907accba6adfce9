package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request DTOs

type CreateBookingRequest struct {
	StartTime          time.Time `json:"start_time" validate:"required"`
	DurationMinutes    int       `json:"duration_minutes" validate:"required,gt=0"`
	ServiceName        string    `json:"service_name" validate:"required,min=2,max=255"`
	ServiceDescription string    `json:"service_description" validate:"omitempty"`
	Notes              string    `json:"notes" validate:"omitempty"`
	// Price is a decimal string, e.g. "49.90", to keep money out of float64.
	Price    string `json:"price" validate:"required"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type RescheduleBookingRequest struct {
	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Notes           string    `json:"notes" validate:"omitempty"`
	// ExpectedVersion is the version the client last read. A mismatch means
	// someone else changed the booking first and the request is rejected.
	ExpectedVersion int64 `json:"expected_version" validate:"required,gt=0"`
}

type CancelBookingRequest struct {
	ExpectedVersion int64 `json:"expected_version" validate:"required,gt=0"`
}

type CompleteBookingRequest struct {
	ExpectedVersion int64 `json:"expected_version" validate:"required,gt=0"`
}

type ReconcilePaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// Response DTOs

type BookingResponse struct {
	ID                 uuid.UUID       `json:"id"`
	OwnerID            uuid.UUID       `json:"owner_id"`
	StartTime          time.Time       `json:"start_time"`
	EndTime            time.Time       `json:"end_time"`
	DurationMinutes    int             `json:"duration_minutes"`
	ServiceName        string          `json:"service_name"`
	ServiceDescription string          `json:"service_description,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Price              decimal.Decimal `json:"price"`
	Currency           string          `json:"currency"`
	Status             string          `json:"status"`
	PaymentIntentID    *string         `json:"payment_intent_id,omitempty"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Total    int               `json:"total"`
}

// CancelBookingResponse reports whether money already moved for the cancelled
// booking; a true RefundRequired means support owes the customer a refund.
type CancelBookingResponse struct {
	Booking        BookingResponse `json:"booking"`
	RefundRequired bool            `json:"refund_required"`
}
