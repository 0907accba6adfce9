package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"online-booking-backend/internal/domain/entity"
	domainRepo "online-booking-backend/internal/domain/repository"
	"online-booking-backend/internal/gateway"
	"online-booking-backend/pkg/clock"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrReconcileNotFound is returned when the booking the caller named does
	// not exist (or no booking holds the given intent reference).
	ErrReconcileNotFound = errors.New("booking not found")
	// ErrPaymentPending means the gateway accepted the charge but has not
	// settled it yet. The booking stays in pending_payment; a later retry or
	// the background reconciler picks it up.
	ErrPaymentPending = errors.New("payment is still processing at the gateway")
)

const (
	intentStatusKeyPrefix = "payment:intent:"
	intentStatusCacheTTL  = 24 * time.Hour
)

// PaymentReconciler drives a booking through its payment flow and repairs
// drift between the local state machine and the gateway. The gateway is
// eventually consistent: a timed-out call may or may not have taken effect, so
// every mutation here is either idempotent at the gateway (deterministic
// idempotency keys) or guarded locally by the versioned update.
type PaymentReconciler struct {
	db           *gorm.DB
	log          *logrus.Logger
	bookingRepo  domainRepo.BookingRepository
	auditService AuditService
	payments     gateway.PaymentClient
	redisClient  *redis.Client
	clock        clock.Clock
	callTimeout  time.Duration
}

func NewPaymentReconciler(
	db *gorm.DB,
	log *logrus.Logger,
	bookingRepo domainRepo.BookingRepository,
	auditService AuditService,
	payments gateway.PaymentClient,
	redisClient *redis.Client,
	clk clock.Clock,
	callTimeout time.Duration,
) *PaymentReconciler {
	return &PaymentReconciler{
		db:           db,
		log:          log,
		bookingRepo:  bookingRepo,
		auditService: auditService,
		payments:     payments,
		redisClient:  redisClient,
		clock:        clk,
		callTimeout:  callTimeout,
	}
}

// idempotencyKey is derived from the booking ID alone, so any number of
// retries for the same booking hit the same intent at the gateway.
func idempotencyKey(bookingID uuid.UUID) string {
	return "booking-" + bookingID.String()
}

// CreateAndPay takes a pending_payment booking through intent creation and
// confirmation. Safe to call repeatedly: an already-confirmed booking returns
// as-is, a half-finished attempt resumes from the persisted intent reference.
func (r *PaymentReconciler) CreateAndPay(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := r.bookingRepo.FindByID(r.db.WithContext(ctx), bookingID)
	if err != nil {
		r.log.Warnf("Failed to load booking %s for payment: %+v", bookingID, err)
		return nil, err
	}
	if booking == nil {
		return nil, ErrReconcileNotFound
	}
	if booking.IsPaid() {
		return booking, nil
	}
	if booking.Status != entity.BookingStatusPendingPayment {
		return nil, entity.ErrInvalidTransition
	}

	intentRef, err := r.ensureIntent(ctx, booking)
	if err != nil {
		return nil, err
	}

	status, err := r.confirmAtGateway(ctx, intentRef)
	if err != nil {
		return nil, err
	}

	switch status {
	case gateway.IntentStatusSucceeded:
		return r.markConfirmed(ctx, booking, intentRef)
	case gateway.IntentStatusProcessing, gateway.IntentStatusRequiresAction:
		return booking, ErrPaymentPending
	case gateway.IntentStatusCanceled, gateway.IntentStatusFailed:
		return nil, gateway.ErrRejected
	default:
		return nil, fmt.Errorf("unexpected intent status %q for booking %s", status, booking.ID)
	}
}

// ensureIntent returns the booking's intent reference, creating the intent at
// the gateway first if the booking does not hold one yet. The reference is
// persisted before confirmation so a crash between the two steps leaves a
// trail the reconciler can follow.
func (r *PaymentReconciler) ensureIntent(ctx context.Context, booking *entity.Booking) (string, error) {
	if booking.PaymentIntentID != nil {
		return *booking.PaymentIntentID, nil
	}

	description := fmt.Sprintf("Booking %s: %s", booking.ID, booking.ServiceName)
	intent, err := r.createIntentWithRetry(ctx, booking, description)
	if err != nil {
		return "", err
	}

	booking.PaymentIntentID = &intent.Ref
	if err := r.bookingRepo.UpdateWithVersion(r.db.WithContext(ctx), booking, booking.Version); err != nil {
		if !errors.Is(err, domainRepo.ErrStaleVersion) {
			r.log.Warnf("Failed to persist intent reference for booking %s: %+v", booking.ID, err)
			return "", err
		}
		// Lost the race. Re-read: a concurrent payer may already have stored
		// the same reference (same idempotency key) or even confirmed.
		reloaded, findErr := r.bookingRepo.FindByID(r.db.WithContext(ctx), booking.ID)
		if findErr != nil {
			return "", findErr
		}
		if reloaded == nil {
			return "", ErrReconcileNotFound
		}
		*booking = *reloaded
		if booking.PaymentIntentID == nil || *booking.PaymentIntentID != intent.Ref {
			return "", domainRepo.ErrStaleVersion
		}
	}

	return intent.Ref, nil
}

func (r *PaymentReconciler) createIntentWithRetry(ctx context.Context, booking *entity.Booking, description string) (*gateway.Intent, error) {
	key := idempotencyKey(booking.ID)

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	intent, err := r.payments.CreateIntent(callCtx, booking.Price, booking.Currency, key, description)
	cancel()
	if err == nil {
		return intent, nil
	}
	if !errors.Is(err, gateway.ErrUnavailable) {
		return nil, err
	}

	// Unknown outcome; the deterministic key makes a second attempt safe.
	r.log.Warnf("Gateway unavailable creating intent for booking %s, retrying once: %+v", booking.ID, err)
	callCtx, cancel = context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	intent, err = r.payments.CreateIntent(callCtx, booking.Price, booking.Currency, key, description)
	if err != nil {
		r.log.Warnf("Gateway still unavailable creating intent for booking %s: %+v", booking.ID, err)
		return nil, err
	}
	return intent, nil
}

func (r *PaymentReconciler) confirmAtGateway(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	status, err := r.payments.Confirm(callCtx, intentRef)
	cancel()
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, gateway.ErrUnavailable) {
		return "", err
	}

	r.log.Warnf("Gateway unavailable confirming intent %s, retrying once: %+v", intentRef, err)
	callCtx, cancel = context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	status, err = r.payments.Confirm(callCtx, intentRef)
	if err != nil {
		// The first attempt may have landed. Ask before giving up.
		retrieved, retrieveErr := r.retrieveStatus(ctx, intentRef)
		if retrieveErr == nil && retrieved.Settled() {
			return retrieved, nil
		}
		return "", err
	}
	return status, nil
}

// markConfirmed commits the local confirmed transition plus its audit entry in
// one transaction. A concurrent confirm of the same booking loses the version
// race and simply re-reads the already-confirmed row.
func (r *PaymentReconciler) markConfirmed(ctx context.Context, booking *entity.Booking, intentRef string) (*entity.Booking, error) {
	// A concurrent payer may have confirmed between the intent reload and here.
	if booking.IsPaid() {
		return booking, nil
	}

	fromStatus := booking.Status
	expectedVersion := booking.Version

	if err := booking.Confirm(intentRef); err != nil {
		return nil, err
	}

	tx := r.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := r.bookingRepo.UpdateWithVersion(tx, booking, expectedVersion); err != nil {
		if errors.Is(err, domainRepo.ErrStaleVersion) {
			reloaded, findErr := r.bookingRepo.FindByID(r.db.WithContext(ctx), booking.ID)
			if findErr == nil && reloaded != nil && reloaded.IsPaid() {
				return reloaded, nil
			}
		}
		r.log.Warnf("Failed to confirm booking %s: %+v", booking.ID, err)
		return nil, err
	}

	if err := r.auditService.RecordBookingTransition(tx, &booking.OwnerID, "booking.confirm", booking, fromStatus); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		r.log.Warnf("Failed to commit booking confirmation: %+v", err)
		return nil, err
	}

	r.log.Infof("Booking %s confirmed with intent %s", booking.ID, intentRef)
	return booking, nil
}

// CancelWithRefundIntent cancels a booking and, when money already moved,
// reports that a manual refund is owed. The gateway cancel runs before the
// local transition; if the gateway call's outcome is unknown the booking is
// left untouched so a retry sees consistent state.
func (r *PaymentReconciler) CancelWithRefundIntent(ctx context.Context, bookingID uuid.UUID, expectedVersion int64) (*entity.Booking, bool, error) {
	booking, err := r.bookingRepo.FindByID(r.db.WithContext(ctx), bookingID)
	if err != nil {
		return nil, false, err
	}
	if booking == nil {
		return nil, false, ErrReconcileNotFound
	}
	if booking.Version != expectedVersion {
		return nil, false, domainRepo.ErrStaleVersion
	}
	if booking.Status == entity.BookingStatusCancelled {
		return booking, false, nil
	}

	refundRequired := false
	if booking.PaymentIntentID != nil {
		refundRequired, err = r.releaseIntent(ctx, *booking.PaymentIntentID)
		if err != nil {
			return nil, false, err
		}
	}

	intentRef := booking.PaymentIntentID
	fromStatus := booking.Status
	if err := booking.Cancel(); err != nil {
		return nil, false, err
	}
	if refundRequired {
		// Money already moved; keep the reference so the manual refund can be
		// traced even though the booking never left pending_payment.
		booking.PaymentIntentID = intentRef
	}

	tx := r.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := r.bookingRepo.UpdateWithVersion(tx, booking, expectedVersion); err != nil {
		r.log.Warnf("Failed to cancel booking %s: %+v", booking.ID, err)
		return nil, false, err
	}

	if err := r.auditService.RecordBookingTransition(tx, &booking.OwnerID, "booking.cancel", booking, fromStatus); err != nil {
		return nil, false, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, false, err
	}

	if refundRequired {
		r.log.Warnf("Booking %s cancelled after settlement, manual refund required for intent %s", booking.ID, *intentRef)
	}
	return booking, refundRequired, nil
}

// releaseIntent cancels an uncaptured intent at the gateway. If the intent
// already settled the cancel is pointless and the caller owes a refund.
func (r *PaymentReconciler) releaseIntent(ctx context.Context, intentRef string) (refundRequired bool, err error) {
	status, err := r.retrieveStatus(ctx, intentRef)
	if err != nil {
		if errors.Is(err, gateway.ErrIntentNotFound) {
			// Creation never landed at the gateway; nothing to release.
			return false, nil
		}
		return false, err
	}

	switch status {
	case gateway.IntentStatusSucceeded:
		return true, nil
	case gateway.IntentStatusCanceled, gateway.IntentStatusFailed:
		return false, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	if _, err := r.payments.Cancel(callCtx, intentRef); err != nil {
		if errors.Is(err, gateway.ErrIntentNotFound) {
			return false, nil
		}
		r.log.Warnf("Failed to cancel intent %s at gateway: %+v", intentRef, err)
		return false, err
	}
	return false, nil
}

// ReconcileFromGatewayStatus re-reads an intent at the gateway and repairs the
// booking that holds it: a settled intent confirms a still-pending booking, a
// dead intent cancels it.
func (r *PaymentReconciler) ReconcileFromGatewayStatus(ctx context.Context, intentRef string) (*entity.Booking, error) {
	booking, err := r.bookingRepo.FindByPaymentIntentID(r.db.WithContext(ctx), intentRef)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrReconcileNotFound
	}

	status, err := r.retrieveStatus(ctx, intentRef)
	if err != nil {
		return nil, err
	}

	if booking.Status != entity.BookingStatusPendingPayment {
		// Nothing to repair; the local machine already moved on.
		return booking, nil
	}

	switch status {
	case gateway.IntentStatusSucceeded:
		repaired, err := r.markConfirmed(ctx, booking, intentRef)
		if err != nil {
			return nil, err
		}
		r.auditReconcile(ctx, repaired, status)
		return repaired, nil
	case gateway.IntentStatusCanceled, gateway.IntentStatusFailed:
		fromStatus := booking.Status
		expectedVersion := booking.Version
		if err := booking.Cancel(); err != nil {
			return nil, err
		}
		if err := r.bookingRepo.UpdateWithVersion(r.db.WithContext(ctx), booking, expectedVersion); err != nil {
			r.log.Warnf("Failed to reconcile-cancel booking %s: %+v", booking.ID, err)
			return nil, err
		}
		r.log.Infof("Booking %s cancelled by reconciliation, intent %s is %s (was %s)", booking.ID, intentRef, status, fromStatus)
		r.auditReconcile(ctx, booking, status)
		return booking, nil
	default:
		// Still in flight at the gateway; leave the booking pending.
		return booking, nil
	}
}

// ReconcileStalePending sweeps pending_payment bookings that hold an intent
// reference but have not moved for longer than maxAge. Run from the scheduler.
func (r *PaymentReconciler) ReconcileStalePending(ctx context.Context, maxAge time.Duration) error {
	cutoff := r.clock.Now().Add(-maxAge)
	stale, err := r.bookingRepo.FindStalePendingWithIntent(r.db.WithContext(ctx), cutoff)
	if err != nil {
		r.log.Warnf("Failed to list stale pending bookings: %+v", err)
		return err
	}

	var lastErr error
	for i := range stale {
		booking := stale[i]
		if booking.PaymentIntentID == nil {
			continue
		}
		if _, err := r.ReconcileFromGatewayStatus(ctx, *booking.PaymentIntentID); err != nil {
			r.log.Warnf("Failed to reconcile booking %s: %+v", booking.ID, err)
			lastErr = err
		}
	}
	return lastErr
}

// retrieveStatus asks the gateway for an intent's status, short-circuiting
// through Redis for statuses the gateway will never change again.
func (r *PaymentReconciler) retrieveStatus(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	cacheKey := intentStatusKeyPrefix + intentRef
	if r.redisClient != nil {
		cached, err := r.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			return gateway.IntentStatus(cached), nil
		}
		if !errors.Is(err, redis.Nil) {
			r.log.Warnf("Failed to read intent status cache for %s: %+v", intentRef, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	status, err := r.payments.Retrieve(callCtx, intentRef)
	if err != nil {
		return "", err
	}

	if status.Terminal() && r.redisClient != nil {
		if err := r.redisClient.Set(ctx, cacheKey, string(status), intentStatusCacheTTL).Err(); err != nil {
			r.log.Warnf("Failed to cache intent status for %s: %+v", intentRef, err)
		}
	}
	return status, nil
}

func (r *PaymentReconciler) auditReconcile(ctx context.Context, booking *entity.Booking, status gateway.IntentStatus) {
	metadata := entity.JSON{
		"booking_id":    booking.ID.String(),
		"intent_status": string(status),
		"status":        string(booking.Status),
	}
	if err := r.auditService.Record(r.db.WithContext(ctx), nil, "booking.reconcile", metadata); err != nil {
		r.log.Warnf("Failed to audit reconciliation for booking %s: %+v", booking.ID, err)
	}
}
