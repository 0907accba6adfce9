package converter

import (
	"online-booking-backend/internal/delivery/dto"
	"online-booking-backend/internal/domain/entity"
)

// BookingToResponse converts a Booking entity to BookingResponse DTO
func BookingToResponse(booking *entity.Booking) *dto.BookingResponse {
	if booking == nil {
		return nil
	}

	return &dto.BookingResponse{
		ID:                 booking.ID,
		OwnerID:            booking.OwnerID,
		StartTime:          booking.StartTime,
		EndTime:            booking.Window().End(),
		DurationMinutes:    booking.DurationMinutes,
		ServiceName:        booking.ServiceName,
		ServiceDescription: booking.ServiceDescription,
		Notes:              booking.Notes,
		Price:              booking.Price,
		Currency:           booking.Currency,
		Status:             string(booking.Status),
		PaymentIntentID:    booking.PaymentIntentID,
		Version:            booking.Version,
		CreatedAt:          booking.CreatedAt,
		UpdatedAt:          booking.UpdatedAt,
	}
}

// BookingsToResponses converts a slice of Booking entities to response DTOs
func BookingsToResponses(bookings []entity.Booking) []dto.BookingResponse {
	responses := make([]dto.BookingResponse, len(bookings))
	for i := range bookings {
		responses[i] = *BookingToResponse(&bookings[i])
	}
	return responses
}
