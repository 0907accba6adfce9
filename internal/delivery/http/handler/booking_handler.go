package handler

import (
	"encoding/json"
	"net/http"

	"online-booking-backend/internal/delivery/dto"
	"online-booking-backend/internal/delivery/http/middleware"
	"online-booking-backend/internal/domain/entity"
	"online-booking-backend/internal/domain/repository"
	"online-booking-backend/internal/gateway"
	"online-booking-backend/internal/service"
	"online-booking-backend/internal/usecase"
	"online-booking-backend/pkg/response"
	"online-booking-backend/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type BookingHandler struct {
	bookingUsecase usecase.BookingUsecase
	validator      *validator.CustomValidator
}

func NewBookingHandler(bookingUsecase usecase.BookingUsecase, validator *validator.CustomValidator) *BookingHandler {
	return &BookingHandler{
		bookingUsecase: bookingUsecase,
		validator:      validator,
	}
}

// Create handles booking creation
// @Summary Create a booking
// @Description Create a booking and start its payment
// @Tags Bookings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateBookingRequest true "Create Booking Request"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /bookings [post]
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}

	var req dto.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	booking, err := h.bookingUsecase.Create(r.Context(), userID, &req)
	if err != nil {
		h.respondBookingError(w, err, "Failed to create booking")
		return
	}

	response.Success(w, http.StatusCreated, "Booking created successfully", booking)
}

// Pay retries payment for a pending booking
// @Summary Pay for a booking
// @Description Retry payment for a pending booking; idempotent for confirmed bookings
// @Tags Bookings
// @Security BearerAuth
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Response
// @Failure 402 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /bookings/{id}/pay [post]
func (h *BookingHandler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}

	bookingID, err := h.bookingIDFromPath(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	booking, err := h.bookingUsecase.Pay(r.Context(), userID, bookingID)
	if err != nil {
		h.respondBookingError(w, err, "Failed to pay for booking")
		return
	}

	response.Success(w, http.StatusOK, "Booking paid successfully", booking)
}

// Get returns a single booking
// @Summary Get a booking
// @Tags Bookings
// @Security BearerAuth
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}
	roleID, _ := middleware.GetRoleIDFromContext(r.Context())

	bookingID, err := h.bookingIDFromPath(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	booking, err := h.bookingUsecase.Get(r.Context(), userID, roleID, bookingID)
	if err != nil {
		h.respondBookingError(w, err, "Failed to get booking")
		return
	}

	response.Success(w, http.StatusOK, "Booking retrieved successfully", booking)
}

// List returns the caller's bookings, optionally filtered by status
// @Summary List bookings
// @Tags Bookings
// @Security BearerAuth
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Response
// @Router /bookings [get]
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}

	list, err := h.bookingUsecase.List(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		h.respondBookingError(w, err, "Failed to list bookings")
		return
	}

	response.Success(w, http.StatusOK, "Bookings retrieved successfully", list)
}

// Reschedule moves a booking to a new window
// @Summary Reschedule a booking
// @Description Move a confirmed booking to a new time window
// @Tags Bookings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body dto.RescheduleBookingRequest true "Reschedule Request"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /bookings/{id}/reschedule [put]
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}

	bookingID, err := h.bookingIDFromPath(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	var req dto.RescheduleBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	booking, err := h.bookingUsecase.Reschedule(r.Context(), userID, bookingID, &req)
	if err != nil {
		h.respondBookingError(w, err, "Failed to reschedule booking")
		return
	}

	response.Success(w, http.StatusOK, "Booking rescheduled successfully", booking)
}

// Cancel cancels a booking
// @Summary Cancel a booking
// @Description Cancel a booking; reports whether a manual refund is owed
// @Tags Bookings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body dto.CancelBookingRequest true "Cancel Request"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}
	roleID, _ := middleware.GetRoleIDFromContext(r.Context())

	bookingID, err := h.bookingIDFromPath(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	var req dto.CancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	result, err := h.bookingUsecase.Cancel(r.Context(), userID, roleID, bookingID, &req)
	if err != nil {
		h.respondBookingError(w, err, "Failed to cancel booking")
		return
	}

	response.Success(w, http.StatusOK, "Booking cancelled successfully", result)
}

// Complete marks a booking as completed
// @Summary Complete a booking
// @Description Mark a booking completed after its window has elapsed
// @Tags Bookings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body dto.CompleteBookingRequest true "Complete Request"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /bookings/{id}/complete [post]
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}
	roleID, _ := middleware.GetRoleIDFromContext(r.Context())

	bookingID, err := h.bookingIDFromPath(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	var req dto.CompleteBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	booking, err := h.bookingUsecase.Complete(r.Context(), userID, roleID, bookingID, &req)
	if err != nil {
		h.respondBookingError(w, err, "Failed to complete booking")
		return
	}

	response.Success(w, http.StatusOK, "Booking completed successfully", booking)
}

// Reconcile forces a gateway re-read for one payment intent (admin only)
// @Summary Reconcile a payment
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.ReconcilePaymentRequest true "Reconcile Request"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/payments/reconcile [post]
func (h *BookingHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcilePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	booking, err := h.bookingUsecase.Reconcile(r.Context(), &req)
	if err != nil {
		h.respondBookingError(w, err, "Failed to reconcile payment")
		return
	}

	response.Success(w, http.StatusOK, "Payment reconciled successfully", booking)
}

// Delete removes a booking row (admin only)
// @Summary Delete a booking
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/bookings/{id} [delete]
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}

	bookingID, err := h.bookingIDFromPath(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	if err := h.bookingUsecase.AdminDelete(r.Context(), adminID, bookingID); err != nil {
		h.respondBookingError(w, err, "Failed to delete booking")
		return
	}

	response.Success(w, http.StatusOK, "Booking deleted successfully", nil)
}

func (h *BookingHandler) bookingIDFromPath(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

// respondBookingError maps domain and gateway errors onto HTTP statuses. The
// interesting distinctions: 409 for conflicts and lost version races, 422 for
// transitions the state machine forbids, 402 for definitive gateway refusals
// and 503 when the gateway outcome is unknown.
func (h *BookingHandler) respondBookingError(w http.ResponseWriter, err error, fallbackMessage string) {
	switch err {
	case usecase.ErrBookingNotFound:
		response.NotFound(w, "Booking not found")
	case usecase.ErrBookingNotOwned:
		response.Forbidden(w, "Booking does not belong to this user")
	case usecase.ErrBookingConflict:
		response.Conflict(w, "Booking window overlaps an existing booking")
	case repository.ErrStaleVersion:
		response.Conflict(w, "Booking was modified concurrently, re-read and retry")
	case entity.ErrInvalidTransition:
		response.Error(w, http.StatusUnprocessableEntity, "Booking status does not allow this operation", nil)
	case entity.ErrInvalidWindow, entity.ErrNegativePrice,
		usecase.ErrInvalidPriceFormat, usecase.ErrInvalidStatusFilter:
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
	case service.ErrPaymentPending:
		// Accepted, not failed: the gateway has the charge but has not
		// settled it.
		response.Success(w, http.StatusAccepted, "Payment is still processing, retry shortly", nil)
	case gateway.ErrRejected:
		response.Error(w, http.StatusPaymentRequired, "Payment was rejected by the gateway", nil)
	case gateway.ErrUnavailable:
		response.Error(w, http.StatusServiceUnavailable, "Payment gateway is unavailable, retry later", nil)
	case gateway.ErrIntentNotFound:
		response.NotFound(w, "Payment intent not found at gateway")
	default:
		response.InternalServerError(w, fallbackMessage)
	}
}
