package service

import (
	"context"
	"testing"
	"time"

	"online-booking-backend/internal/domain/entity"
	domainRepo "online-booking-backend/internal/domain/repository"
	"online-booking-backend/internal/gateway"
	"online-booking-backend/pkg/clock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) Create(db *gorm.DB, booking *entity.Booking) error {
	return m.Called(db, booking).Error(0)
}

func (m *mockBookingRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Booking, error) {
	args := m.Called(db, id)
	booking, _ := args.Get(0).(*entity.Booking)
	return booking, args.Error(1)
}

func (m *mockBookingRepo) FindByOwnerID(db *gorm.DB, ownerID uuid.UUID) ([]entity.Booking, error) {
	args := m.Called(db, ownerID)
	bookings, _ := args.Get(0).([]entity.Booking)
	return bookings, args.Error(1)
}

func (m *mockBookingRepo) FindByOwnerAndStatus(db *gorm.DB, ownerID uuid.UUID, status entity.BookingStatus) ([]entity.Booking, error) {
	args := m.Called(db, ownerID, status)
	bookings, _ := args.Get(0).([]entity.Booking)
	return bookings, args.Error(1)
}

func (m *mockBookingRepo) FindActiveByOwner(db *gorm.DB, ownerID uuid.UUID) ([]entity.Booking, error) {
	args := m.Called(db, ownerID)
	bookings, _ := args.Get(0).([]entity.Booking)
	return bookings, args.Error(1)
}

func (m *mockBookingRepo) FindByPaymentIntentID(db *gorm.DB, intentRef string) (*entity.Booking, error) {
	args := m.Called(db, intentRef)
	booking, _ := args.Get(0).(*entity.Booking)
	return booking, args.Error(1)
}

func (m *mockBookingRepo) FindStalePendingWithIntent(db *gorm.DB, cutoff time.Time) ([]entity.Booking, error) {
	args := m.Called(db, cutoff)
	bookings, _ := args.Get(0).([]entity.Booking)
	return bookings, args.Error(1)
}

func (m *mockBookingRepo) UpdateWithVersion(db *gorm.DB, booking *entity.Booking, expectedVersion int64) error {
	args := m.Called(db, booking, expectedVersion)
	if args.Error(0) == nil {
		booking.Version = expectedVersion + 1
	}
	return args.Error(0)
}

func (m *mockBookingRepo) Delete(db *gorm.DB, id uuid.UUID) error {
	return m.Called(db, id).Error(0)
}

type mockPaymentClient struct {
	mock.Mock
}

func (m *mockPaymentClient) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey, description string) (*gateway.Intent, error) {
	args := m.Called(ctx, amount, currency, idempotencyKey, description)
	intent, _ := args.Get(0).(*gateway.Intent)
	return intent, args.Error(1)
}

func (m *mockPaymentClient) Confirm(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	args := m.Called(ctx, intentRef)
	return args.Get(0).(gateway.IntentStatus), args.Error(1)
}

func (m *mockPaymentClient) Cancel(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	args := m.Called(ctx, intentRef)
	return args.Get(0).(gateway.IntentStatus), args.Error(1)
}

func (m *mockPaymentClient) Retrieve(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	args := m.Called(ctx, intentRef)
	return args.Get(0).(gateway.IntentStatus), args.Error(1)
}

type mockAuditService struct {
	mock.Mock
}

func (m *mockAuditService) Record(tx *gorm.DB, userID *uuid.UUID, action string, metadata entity.JSON) error {
	return m.Called(tx, userID, action, metadata).Error(0)
}

func (m *mockAuditService) RecordBookingTransition(tx *gorm.DB, userID *uuid.UUID, action string, booking *entity.Booking, fromStatus entity.BookingStatus) error {
	return m.Called(tx, userID, action, booking, fromStatus).Error(0)
}

type reconcilerFixture struct {
	reconciler *PaymentReconciler
	repo       *mockBookingRepo
	payments   *mockPaymentClient
	audit      *mockAuditService
	sqlMock    sqlmock.Sqlmock
	clock      *clock.Fixed
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	repo := &mockBookingRepo{}
	payments := &mockPaymentClient{}
	audit := &mockAuditService{}
	fixed := clock.NewFixed(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))

	return &reconcilerFixture{
		reconciler: NewPaymentReconciler(db, log, repo, audit, payments, nil, fixed, 2*time.Second),
		repo:       repo,
		payments:   payments,
		audit:      audit,
		sqlMock:    sqlMock,
		clock:      fixed,
	}
}

func pendingBooking() *entity.Booking {
	return &entity.Booking{
		ID:              uuid.New(),
		OwnerID:         uuid.New(),
		StartTime:       time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		ServiceName:     "Haircut",
		Price:           decimal.RequireFromString("30.00"),
		Currency:        "usd",
		Status:          entity.BookingStatusPendingPayment,
		Version:         1,
	}
}

func confirmedBooking(ref string) *entity.Booking {
	b := pendingBooking()
	b.Status = entity.BookingStatusConfirmed
	b.PaymentIntentID = &ref
	b.Version = 2
	return b
}

func TestCreateAndPayHappyPath(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()
	key := "booking-" + booking.ID.String()

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("CreateIntent", mock.Anything, booking.Price, "usd", key, mock.Anything).
		Return(&gateway.Intent{Ref: "pi_1", Status: gateway.IntentStatusRequiresAction}, nil).Once()
	// Persist the intent reference, still pending
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(1)).Return(nil).Once()
	f.payments.On("Confirm", mock.Anything, "pi_1").Return(gateway.IntentStatusSucceeded, nil).Once()
	// Confirmed transition commits with its audit entry
	f.sqlMock.ExpectBegin()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(2)).Return(nil).Once()
	f.audit.On("RecordBookingTransition", mock.Anything, &booking.OwnerID, "booking.confirm", booking, entity.BookingStatusPendingPayment).Return(nil).Once()
	f.sqlMock.ExpectCommit()

	result, err := f.reconciler.CreateAndPay(context.Background(), booking.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusConfirmed, result.Status)
	require.NotNil(t, result.PaymentIntentID)
	assert.Equal(t, "pi_1", *result.PaymentIntentID)
	assert.Equal(t, int64(3), result.Version)
	f.repo.AssertExpectations(t)
	f.payments.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestCreateAndPayAlreadyConfirmedIsIdempotent(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := confirmedBooking("pi_1")

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()

	result, err := f.reconciler.CreateAndPay(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, result.Status)

	// No gateway traffic for an already-paid booking
	f.payments.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
}

func TestCreateAndPayRetriesCreateOnceOnUnavailable(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()
	key := "booking-" + booking.ID.String()

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	// First attempt times out; the identical idempotency key makes the retry
	// safe even if the first attempt actually landed.
	f.payments.On("CreateIntent", mock.Anything, booking.Price, "usd", key, mock.Anything).
		Return(nil, gateway.ErrUnavailable).Once()
	f.payments.On("CreateIntent", mock.Anything, booking.Price, "usd", key, mock.Anything).
		Return(&gateway.Intent{Ref: "pi_1", Status: gateway.IntentStatusRequiresAction}, nil).Once()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(1)).Return(nil).Once()
	f.payments.On("Confirm", mock.Anything, "pi_1").Return(gateway.IntentStatusSucceeded, nil).Once()
	f.sqlMock.ExpectBegin()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(2)).Return(nil).Once()
	f.audit.On("RecordBookingTransition", mock.Anything, mock.Anything, "booking.confirm", booking, entity.BookingStatusPendingPayment).Return(nil).Once()
	f.sqlMock.ExpectCommit()

	result, err := f.reconciler.CreateAndPay(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, result.Status)
	f.payments.AssertExpectations(t)
}

func TestCreateAndPayGivesUpAfterSecondUnavailable(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, gateway.ErrUnavailable).Twice()

	_, err := f.reconciler.CreateAndPay(context.Background(), booking.ID)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)

	// The booking was never touched: no intent reference, still pending
	assert.Nil(t, booking.PaymentIntentID)
	assert.Equal(t, entity.BookingStatusPendingPayment, booking.Status)
	f.repo.AssertNotCalled(t, "UpdateWithVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAndPayProcessingLeavesBookingPending(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.Intent{Ref: "pi_1", Status: gateway.IntentStatusProcessing}, nil).Once()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(1)).Return(nil).Once()
	f.payments.On("Confirm", mock.Anything, "pi_1").Return(gateway.IntentStatusProcessing, nil).Once()

	result, err := f.reconciler.CreateAndPay(context.Background(), booking.ID)
	assert.ErrorIs(t, err, ErrPaymentPending)

	// Pending with the reference persisted so reconciliation can find it
	assert.Equal(t, entity.BookingStatusPendingPayment, result.Status)
	require.NotNil(t, result.PaymentIntentID)
	assert.Equal(t, "pi_1", *result.PaymentIntentID)
}

func TestCreateAndPayFailedIntentRejected(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.Intent{Ref: "pi_1", Status: gateway.IntentStatusRequiresAction}, nil).Once()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(1)).Return(nil).Once()
	f.payments.On("Confirm", mock.Anything, "pi_1").Return(gateway.IntentStatusFailed, nil).Once()

	_, err := f.reconciler.CreateAndPay(context.Background(), booking.ID)
	assert.ErrorIs(t, err, gateway.ErrRejected)
	assert.Equal(t, entity.BookingStatusPendingPayment, booking.Status)
}

func TestCreateAndPayConfirmRetryFindsSettledIntent(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.Intent{Ref: "pi_1", Status: gateway.IntentStatusRequiresAction}, nil).Once()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(1)).Return(nil).Once()
	// Both confirm attempts fail but the first one actually landed: the
	// follow-up retrieve discovers the settled intent.
	f.payments.On("Confirm", mock.Anything, "pi_1").Return(gateway.IntentStatus(""), gateway.ErrUnavailable).Twice()
	f.payments.On("Retrieve", mock.Anything, "pi_1").Return(gateway.IntentStatusSucceeded, nil).Once()
	f.sqlMock.ExpectBegin()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(2)).Return(nil).Once()
	f.audit.On("RecordBookingTransition", mock.Anything, mock.Anything, "booking.confirm", booking, entity.BookingStatusPendingPayment).Return(nil).Once()
	f.sqlMock.ExpectCommit()

	result, err := f.reconciler.CreateAndPay(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, result.Status)
	f.payments.AssertExpectations(t)
}

func TestCreateAndPayConcurrentConfirmWinsRace(t *testing.T) {
	// A concurrent payer stores the same reference and confirms before this
	// caller persists it. The reload already holds the confirmed row; the
	// losing caller must treat that as success, not a failed transition.
	f := newReconcilerFixture(t)
	booking := pendingBooking()
	key := "booking-" + booking.ID.String()
	winner := confirmedBooking("pi_1")
	winner.ID = booking.ID
	winner.OwnerID = booking.OwnerID
	winner.Version = 3

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("CreateIntent", mock.Anything, booking.Price, "usd", key, mock.Anything).
		Return(&gateway.Intent{Ref: "pi_1", Status: gateway.IntentStatusRequiresAction}, nil).Once()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(1)).Return(domainRepo.ErrStaleVersion).Once()
	f.repo.On("FindByID", mock.Anything, booking.ID).Return(winner, nil).Once()
	// Confirming an already-succeeded intent is a gateway no-op
	f.payments.On("Confirm", mock.Anything, "pi_1").Return(gateway.IntentStatusSucceeded, nil).Once()

	result, err := f.reconciler.CreateAndPay(context.Background(), booking.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusConfirmed, result.Status)
	assert.Equal(t, int64(3), result.Version)
	// No second local write for a confirmation that already happened
	f.repo.AssertNumberOfCalls(t, "UpdateWithVersion", 1)
	f.audit.AssertNotCalled(t, "RecordBookingTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertExpectations(t)
	f.payments.AssertExpectations(t)
}

func TestCancelWithRefundIntentAfterSettlement(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := confirmedBooking("pi_1")

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("Retrieve", mock.Anything, "pi_1").Return(gateway.IntentStatusSucceeded, nil).Once()
	f.sqlMock.ExpectBegin()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(2)).Return(nil).Once()
	f.audit.On("RecordBookingTransition", mock.Anything, mock.Anything, "booking.cancel", booking, entity.BookingStatusConfirmed).Return(nil).Once()
	f.sqlMock.ExpectCommit()

	result, refundRequired, err := f.reconciler.CancelWithRefundIntent(context.Background(), booking.ID, 2)
	require.NoError(t, err)

	assert.True(t, refundRequired)
	assert.Equal(t, entity.BookingStatusCancelled, result.Status)
	// The reference stays so the manual refund can be traced
	require.NotNil(t, result.PaymentIntentID)
	assert.Equal(t, "pi_1", *result.PaymentIntentID)
	// A settled intent is never cancelled at the gateway
	f.payments.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestCancelWithRefundIntentUncaptured(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()
	ref := "pi_1"
	booking.PaymentIntentID = &ref

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("Retrieve", mock.Anything, "pi_1").Return(gateway.IntentStatusRequiresAction, nil).Once()
	f.payments.On("Cancel", mock.Anything, "pi_1").Return(gateway.IntentStatusCanceled, nil).Once()
	f.sqlMock.ExpectBegin()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(1)).Return(nil).Once()
	f.audit.On("RecordBookingTransition", mock.Anything, mock.Anything, "booking.cancel", booking, entity.BookingStatusPendingPayment).Return(nil).Once()
	f.sqlMock.ExpectCommit()

	result, refundRequired, err := f.reconciler.CancelWithRefundIntent(context.Background(), booking.ID, 1)
	require.NoError(t, err)

	assert.False(t, refundRequired)
	assert.Equal(t, entity.BookingStatusCancelled, result.Status)
	// A never-settled pending booking drops its reference on cancel
	assert.Nil(t, result.PaymentIntentID)
	f.payments.AssertExpectations(t)
}

func TestCancelWithRefundIntentPendingButSettled(t *testing.T) {
	// The lost-confirmation drift case: money moved at the gateway but the
	// booking never left pending_payment.
	f := newReconcilerFixture(t)
	booking := pendingBooking()
	ref := "pi_1"
	booking.PaymentIntentID = &ref

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("Retrieve", mock.Anything, "pi_1").Return(gateway.IntentStatusSucceeded, nil).Once()
	f.sqlMock.ExpectBegin()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(1)).Return(nil).Once()
	f.audit.On("RecordBookingTransition", mock.Anything, mock.Anything, "booking.cancel", booking, entity.BookingStatusPendingPayment).Return(nil).Once()
	f.sqlMock.ExpectCommit()

	result, refundRequired, err := f.reconciler.CancelWithRefundIntent(context.Background(), booking.ID, 1)
	require.NoError(t, err)

	assert.True(t, refundRequired)
	assert.Equal(t, entity.BookingStatusCancelled, result.Status)
	// The settled reference survives the cancel so the manual refund can be traced
	require.NotNil(t, result.PaymentIntentID)
	assert.Equal(t, "pi_1", *result.PaymentIntentID)
	f.payments.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	f.repo.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestCancelWithRefundIntentStaleVersion(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := confirmedBooking("pi_1")

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()

	_, _, err := f.reconciler.CancelWithRefundIntent(context.Background(), booking.ID, 1)
	assert.ErrorIs(t, err, domainRepo.ErrStaleVersion)

	// No gateway call, no local write
	f.payments.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "UpdateWithVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelWithRefundIntentUnknownGatewayOutcome(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := confirmedBooking("pi_1")

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()
	f.payments.On("Retrieve", mock.Anything, "pi_1").Return(gateway.IntentStatus(""), gateway.ErrUnavailable).Once()

	_, _, err := f.reconciler.CancelWithRefundIntent(context.Background(), booking.ID, 2)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)

	// Unknown outcome must leave the booking untouched
	assert.Equal(t, entity.BookingStatusConfirmed, booking.Status)
	f.repo.AssertNotCalled(t, "UpdateWithVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelWithRefundIntentAlreadyCancelled(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := confirmedBooking("pi_1")
	booking.Status = entity.BookingStatusCancelled

	f.repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil).Once()

	result, refundRequired, err := f.reconciler.CancelWithRefundIntent(context.Background(), booking.ID, 2)
	require.NoError(t, err)
	assert.False(t, refundRequired)
	assert.Equal(t, entity.BookingStatusCancelled, result.Status)
	f.payments.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything)
}

func TestReconcileFromGatewayStatusRepairsSettled(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()
	ref := "pi_1"
	booking.PaymentIntentID = &ref
	booking.Version = 2

	f.repo.On("FindByPaymentIntentID", mock.Anything, "pi_1").Return(booking, nil).Once()
	f.payments.On("Retrieve", mock.Anything, "pi_1").Return(gateway.IntentStatusSucceeded, nil).Once()
	f.sqlMock.ExpectBegin()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(2)).Return(nil).Once()
	f.audit.On("RecordBookingTransition", mock.Anything, mock.Anything, "booking.confirm", booking, entity.BookingStatusPendingPayment).Return(nil).Once()
	f.sqlMock.ExpectCommit()
	f.audit.On("Record", mock.Anything, (*uuid.UUID)(nil), "booking.reconcile", mock.Anything).Return(nil).Once()

	result, err := f.reconciler.ReconcileFromGatewayStatus(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, result.Status)
	f.audit.AssertExpectations(t)
}

func TestReconcileFromGatewayStatusCancelsDeadIntent(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()
	ref := "pi_1"
	booking.PaymentIntentID = &ref
	booking.Version = 2

	f.repo.On("FindByPaymentIntentID", mock.Anything, "pi_1").Return(booking, nil).Once()
	f.payments.On("Retrieve", mock.Anything, "pi_1").Return(gateway.IntentStatusCanceled, nil).Once()
	f.repo.On("UpdateWithVersion", mock.Anything, booking, int64(2)).Return(nil).Once()
	f.audit.On("Record", mock.Anything, (*uuid.UUID)(nil), "booking.reconcile", mock.Anything).Return(nil).Once()

	result, err := f.reconciler.ReconcileFromGatewayStatus(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, result.Status)
}

func TestReconcileFromGatewayStatusLeavesInFlightAlone(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()
	ref := "pi_1"
	booking.PaymentIntentID = &ref

	f.repo.On("FindByPaymentIntentID", mock.Anything, "pi_1").Return(booking, nil).Once()
	f.payments.On("Retrieve", mock.Anything, "pi_1").Return(gateway.IntentStatusProcessing, nil).Once()

	result, err := f.reconciler.ReconcileFromGatewayStatus(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPendingPayment, result.Status)
	f.repo.AssertNotCalled(t, "UpdateWithVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileFromGatewayStatusUnknownIntent(t *testing.T) {
	f := newReconcilerFixture(t)

	f.repo.On("FindByPaymentIntentID", mock.Anything, "pi_ghost").Return(nil, nil).Once()

	_, err := f.reconciler.ReconcileFromGatewayStatus(context.Background(), "pi_ghost")
	assert.ErrorIs(t, err, ErrReconcileNotFound)
}

func TestReconcileStalePendingSweep(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := pendingBooking()
	ref := "pi_1"
	booking.PaymentIntentID = &ref
	booking.Version = 2

	cutoff := f.clock.Now().Add(-15 * time.Minute)
	f.repo.On("FindStalePendingWithIntent", mock.Anything, cutoff).Return([]entity.Booking{*booking}, nil).Once()
	f.repo.On("FindByPaymentIntentID", mock.Anything, "pi_1").Return(booking, nil).Once()
	f.payments.On("Retrieve", mock.Anything, "pi_1").Return(gateway.IntentStatusProcessing, nil).Once()

	err := f.reconciler.ReconcileStalePending(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
}
