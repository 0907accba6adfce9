package usecase

import (
	"context"
	"errors"
	"strings"

	"online-booking-backend/internal/converter"
	"online-booking-backend/internal/delivery/dto"
	"online-booking-backend/internal/domain/entity"
	"online-booking-backend/internal/domain/repository"
	"online-booking-backend/internal/service"
	"online-booking-backend/pkg/clock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrBookingNotOwned     = errors.New("booking does not belong to this user")
	ErrBookingConflict     = errors.New("booking window overlaps an existing booking")
	ErrInvalidPriceFormat  = errors.New("price must be a decimal string like \"49.90\"")
	ErrInvalidStatusFilter = errors.New("unknown booking status filter")
)

type BookingUsecase interface {
	Create(ctx context.Context, ownerID uuid.UUID, req *dto.CreateBookingRequest) (*dto.BookingResponse, error)
	Pay(ctx context.Context, requesterID uuid.UUID, bookingID uuid.UUID) (*dto.BookingResponse, error)
	Get(ctx context.Context, requesterID uuid.UUID, requesterRoleID int, bookingID uuid.UUID) (*dto.BookingResponse, error)
	List(ctx context.Context, ownerID uuid.UUID, statusFilter string) (*dto.BookingListResponse, error)
	Reschedule(ctx context.Context, requesterID uuid.UUID, bookingID uuid.UUID, req *dto.RescheduleBookingRequest) (*dto.BookingResponse, error)
	Cancel(ctx context.Context, requesterID uuid.UUID, requesterRoleID int, bookingID uuid.UUID, req *dto.CancelBookingRequest) (*dto.CancelBookingResponse, error)
	Complete(ctx context.Context, requesterID uuid.UUID, requesterRoleID int, bookingID uuid.UUID, req *dto.CompleteBookingRequest) (*dto.BookingResponse, error)
	Reconcile(ctx context.Context, req *dto.ReconcilePaymentRequest) (*dto.BookingResponse, error)
	AdminDelete(ctx context.Context, adminID uuid.UUID, bookingID uuid.UUID) error
}

type bookingUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	bookingRepo     repository.BookingRepository
	conflicts       *service.ConflictDetector
	reconciler      *service.PaymentReconciler
	auditService    service.AuditService
	clock           clock.Clock
	defaultCurrency string
}

func NewBookingUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	bookingRepo repository.BookingRepository,
	conflicts *service.ConflictDetector,
	reconciler *service.PaymentReconciler,
	auditService service.AuditService,
	clk clock.Clock,
	defaultCurrency string,
) BookingUsecase {
	return &bookingUsecase{
		db:              db,
		log:             log,
		bookingRepo:     bookingRepo,
		conflicts:       conflicts,
		reconciler:      reconciler,
		auditService:    auditService,
		clock:           clk,
		defaultCurrency: defaultCurrency,
	}
}

// Create inserts a pending_payment booking, then immediately tries to take it
// through payment. A gateway hiccup does not undo the booking: it stays
// pending and the client (or the background reconciler) retries via Pay.
func (u *bookingUsecase) Create(ctx context.Context, ownerID uuid.UUID, req *dto.CreateBookingRequest) (*dto.BookingResponse, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return nil, ErrInvalidPriceFormat
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = u.defaultCurrency
	}

	window := entity.Window{Start: req.StartTime, DurationMinutes: req.DurationMinutes}
	booking, err := entity.NewBooking(ownerID, window, price, currency, req.ServiceName, req.ServiceDescription, req.Notes)
	if err != nil {
		return nil, err
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	// The overlap check and the insert share one transaction; the exclusion
	// constraint below catches the write-write race the check cannot see.
	overlap, err := u.conflicts.HasOverlap(tx, ownerID, window, nil)
	if err != nil {
		u.log.Warnf("Failed to check booking overlap: %+v", err)
		return nil, err
	}
	if overlap {
		return nil, ErrBookingConflict
	}

	if err := u.bookingRepo.Create(tx, booking); err != nil {
		if isExclusionError(err, "bookings_owner_window_excl") {
			return nil, ErrBookingConflict
		}
		u.log.Warnf("Failed to create booking: %+v", err)
		return nil, err
	}

	if err := u.auditService.RecordBookingTransition(tx, &ownerID, entity.AuditActionBookingCreate, booking, entity.BookingStatusPendingPayment); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	paid, err := u.reconciler.CreateAndPay(ctx, booking.ID)
	if err != nil {
		// The booking exists either way; payment is retryable.
		u.log.Warnf("Payment for new booking %s did not complete: %+v", booking.ID, err)
		return converter.BookingToResponse(booking), nil
	}
	return converter.BookingToResponse(paid), nil
}

// Pay retries payment for a pending booking. Idempotent: paying an
// already-confirmed booking returns it unchanged.
func (u *bookingUsecase) Pay(ctx context.Context, requesterID uuid.UUID, bookingID uuid.UUID) (*dto.BookingResponse, error) {
	booking, err := u.findOwned(ctx, requesterID, 0, bookingID)
	if err != nil {
		return nil, err
	}

	paid, err := u.reconciler.CreateAndPay(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	return converter.BookingToResponse(paid), nil
}

func (u *bookingUsecase) Get(ctx context.Context, requesterID uuid.UUID, requesterRoleID int, bookingID uuid.UUID) (*dto.BookingResponse, error) {
	booking, err := u.findOwned(ctx, requesterID, requesterRoleID, bookingID)
	if err != nil {
		return nil, err
	}
	return converter.BookingToResponse(booking), nil
}

func (u *bookingUsecase) List(ctx context.Context, ownerID uuid.UUID, statusFilter string) (*dto.BookingListResponse, error) {
	var (
		bookings []entity.Booking
		err      error
	)

	if statusFilter == "" {
		bookings, err = u.bookingRepo.FindByOwnerID(u.db.WithContext(ctx), ownerID)
	} else {
		status, ok := entity.ParseBookingStatus(statusFilter)
		if !ok {
			return nil, ErrInvalidStatusFilter
		}
		bookings, err = u.bookingRepo.FindByOwnerAndStatus(u.db.WithContext(ctx), ownerID, status)
	}
	if err != nil {
		u.log.Warnf("Failed to list bookings: %+v", err)
		return nil, err
	}

	return &dto.BookingListResponse{
		Bookings: converter.BookingsToResponses(bookings),
		Total:    len(bookings),
	}, nil
}

// Reschedule moves a paid booking's window. The caller must present the
// version it last read; losing the version race returns ErrStaleVersion and
// the client re-reads before retrying.
func (u *bookingUsecase) Reschedule(ctx context.Context, requesterID uuid.UUID, bookingID uuid.UUID, req *dto.RescheduleBookingRequest) (*dto.BookingResponse, error) {
	booking, err := u.findOwned(ctx, requesterID, 0, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Version != req.ExpectedVersion {
		return nil, repository.ErrStaleVersion
	}

	window := entity.Window{Start: req.StartTime, DurationMinutes: req.DurationMinutes}
	fromStatus := booking.Status
	if err := booking.MoveWindow(window); err != nil {
		return nil, err
	}
	if req.Notes != "" {
		booking.Notes = req.Notes
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	overlap, err := u.conflicts.HasOverlap(tx, booking.OwnerID, window, &booking.ID)
	if err != nil {
		u.log.Warnf("Failed to check booking overlap: %+v", err)
		return nil, err
	}
	if overlap {
		return nil, ErrBookingConflict
	}

	if err := u.bookingRepo.UpdateWithVersion(tx, booking, req.ExpectedVersion); err != nil {
		if isExclusionError(err, "bookings_owner_window_excl") {
			return nil, ErrBookingConflict
		}
		u.log.Warnf("Failed to reschedule booking %s: %+v", booking.ID, err)
		return nil, err
	}

	if err := u.auditService.RecordBookingTransition(tx, &requesterID, entity.AuditActionBookingReschedule, booking, fromStatus); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	return converter.BookingToResponse(booking), nil
}

// Cancel ends a booking and reports whether a manual refund is now owed.
func (u *bookingUsecase) Cancel(ctx context.Context, requesterID uuid.UUID, requesterRoleID int, bookingID uuid.UUID, req *dto.CancelBookingRequest) (*dto.CancelBookingResponse, error) {
	if _, err := u.findOwned(ctx, requesterID, requesterRoleID, bookingID); err != nil {
		return nil, err
	}

	booking, refundRequired, err := u.reconciler.CancelWithRefundIntent(ctx, bookingID, req.ExpectedVersion)
	if err != nil {
		if errors.Is(err, service.ErrReconcileNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &dto.CancelBookingResponse{
		Booking:        *converter.BookingToResponse(booking),
		RefundRequired: refundRequired,
	}, nil
}

// Complete closes out a booking whose window has fully elapsed.
func (u *bookingUsecase) Complete(ctx context.Context, requesterID uuid.UUID, requesterRoleID int, bookingID uuid.UUID, req *dto.CompleteBookingRequest) (*dto.BookingResponse, error) {
	booking, err := u.findOwned(ctx, requesterID, requesterRoleID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Version != req.ExpectedVersion {
		return nil, repository.ErrStaleVersion
	}

	fromStatus := booking.Status
	if err := booking.Complete(u.clock.Now()); err != nil {
		return nil, err
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := u.bookingRepo.UpdateWithVersion(tx, booking, req.ExpectedVersion); err != nil {
		u.log.Warnf("Failed to complete booking %s: %+v", booking.ID, err)
		return nil, err
	}

	if err := u.auditService.RecordBookingTransition(tx, &requesterID, entity.AuditActionBookingComplete, booking, fromStatus); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	return converter.BookingToResponse(booking), nil
}

// Reconcile lets an operator force a gateway re-read for one intent.
func (u *bookingUsecase) Reconcile(ctx context.Context, req *dto.ReconcilePaymentRequest) (*dto.BookingResponse, error) {
	booking, err := u.reconciler.ReconcileFromGatewayStatus(ctx, req.PaymentIntentID)
	if err != nil {
		if errors.Is(err, service.ErrReconcileNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return converter.BookingToResponse(booking), nil
}

// AdminDelete removes the booking row outright. It bypasses the state machine
// and never talks to the gateway, so it is restricted to operators cleaning
// up bad data.
func (u *bookingUsecase) AdminDelete(ctx context.Context, adminID uuid.UUID, bookingID uuid.UUID) error {
	booking, err := u.bookingRepo.FindByID(u.db.WithContext(ctx), bookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return ErrBookingNotFound
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := u.bookingRepo.Delete(tx, bookingID); err != nil {
		u.log.Warnf("Failed to delete booking %s: %+v", bookingID, err)
		return err
	}

	metadata := entity.JSON{
		"booking_id": booking.ID.String(),
		"status":     string(booking.Status),
	}
	if err := u.auditService.Record(tx, &adminID, entity.AuditActionBookingDelete, metadata); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return err
	}
	return nil
}

// findOwned loads a booking and enforces ownership. Admins may reach any
// booking; everyone else only their own.
func (u *bookingUsecase) findOwned(ctx context.Context, requesterID uuid.UUID, requesterRoleID int, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := u.bookingRepo.FindByID(u.db.WithContext(ctx), bookingID)
	if err != nil {
		u.log.Warnf("Failed to find booking %s: %+v", bookingID, err)
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.OwnerID != requesterID && requesterRoleID != entity.RoleIDAdmin {
		return nil, ErrBookingNotOwned
	}
	return booking, nil
}

// isExclusionError checks for a PostgreSQL exclusion constraint violation
// on the named constraint (error code 23P01).
func isExclusionError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23P01" && strings.Contains(strings.ToLower(pgErr.ConstraintName), strings.ToLower(constraintName)) {
			return true
		}
	}
	return false
}
