package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"online-booking-backend/internal/delivery/dto"
	"online-booking-backend/internal/domain/entity"
	"online-booking-backend/internal/domain/repository"
	"online-booking-backend/internal/gateway"
	"online-booking-backend/internal/service"
	"online-booking-backend/pkg/clock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeBookingStore is an in-memory BookingRepository so usecase tests can run
// the whole create-and-pay flow without a database.
type fakeBookingStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*entity.Booking
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{byID: map[uuid.UUID]*entity.Booking{}}
}

func (s *fakeBookingStore) clone(b *entity.Booking) *entity.Booking {
	c := *b
	if b.PaymentIntentID != nil {
		ref := *b.PaymentIntentID
		c.PaymentIntentID = &ref
	}
	return &c
}

func (s *fakeBookingStore) Create(db *gorm.DB, booking *entity.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	s.byID[booking.ID] = s.clone(booking)
	return nil
}

func (s *fakeBookingStore) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return s.clone(b), nil
}

func (s *fakeBookingStore) FindByOwnerID(db *gorm.DB, ownerID uuid.UUID) ([]entity.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Booking
	for _, b := range s.byID {
		if b.OwnerID == ownerID {
			out = append(out, *s.clone(b))
		}
	}
	return out, nil
}

func (s *fakeBookingStore) FindByOwnerAndStatus(db *gorm.DB, ownerID uuid.UUID, status entity.BookingStatus) ([]entity.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Booking
	for _, b := range s.byID {
		if b.OwnerID == ownerID && b.Status == status {
			out = append(out, *s.clone(b))
		}
	}
	return out, nil
}

func (s *fakeBookingStore) FindActiveByOwner(db *gorm.DB, ownerID uuid.UUID) ([]entity.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Booking
	for _, b := range s.byID {
		if b.OwnerID == ownerID && b.IsActive() {
			out = append(out, *s.clone(b))
		}
	}
	return out, nil
}

func (s *fakeBookingStore) FindByPaymentIntentID(db *gorm.DB, intentRef string) (*entity.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.byID {
		if b.PaymentIntentID != nil && *b.PaymentIntentID == intentRef {
			return s.clone(b), nil
		}
	}
	return nil, nil
}

func (s *fakeBookingStore) FindStalePendingWithIntent(db *gorm.DB, cutoff time.Time) ([]entity.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Booking
	for _, b := range s.byID {
		if b.Status == entity.BookingStatusPendingPayment && b.PaymentIntentID != nil && b.UpdatedAt.Before(cutoff) {
			out = append(out, *s.clone(b))
		}
	}
	return out, nil
}

func (s *fakeBookingStore) UpdateWithVersion(db *gorm.DB, booking *entity.Booking, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[booking.ID]
	if !ok || stored.Version != expectedVersion {
		return repository.ErrStaleVersion
	}
	booking.Version = expectedVersion + 1
	s.byID[booking.ID] = s.clone(booking)
	return nil
}

func (s *fakeBookingStore) Delete(db *gorm.DB, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

// scriptedPayments answers gateway calls from a fixed script.
type scriptedPayments struct {
	createErrs    []error
	confirmStatus gateway.IntentStatus
	confirmErr    error
	retrieveSt    gateway.IntentStatus
	cancelCalls   int
	createCalls   int
	lastKey       string
}

func (p *scriptedPayments) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey, description string) (*gateway.Intent, error) {
	p.createCalls++
	p.lastKey = idempotencyKey
	if len(p.createErrs) > 0 {
		err := p.createErrs[0]
		p.createErrs = p.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &gateway.Intent{Ref: "pi_" + idempotencyKey, Status: gateway.IntentStatusRequiresAction}, nil
}

func (p *scriptedPayments) Confirm(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	if p.confirmErr != nil {
		return "", p.confirmErr
	}
	if p.confirmStatus == "" {
		return gateway.IntentStatusSucceeded, nil
	}
	return p.confirmStatus, nil
}

func (p *scriptedPayments) Cancel(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	p.cancelCalls++
	return gateway.IntentStatusCanceled, nil
}

func (p *scriptedPayments) Retrieve(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	if p.retrieveSt == "" {
		return gateway.IntentStatusRequiresAction, nil
	}
	return p.retrieveSt, nil
}

type usecaseFixture struct {
	usecase  BookingUsecase
	store    *fakeBookingStore
	payments *scriptedPayments
	clock    *clock.Fixed
	ownerID  uuid.UUID
}

func newUsecaseFixture(t *testing.T) *usecaseFixture {
	t.Helper()

	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	// Transaction boundaries are exercised per test; the statements inside go
	// to the in-memory store, so any number of begin/commit pairs is fine.
	sqlMock.MatchExpectationsInOrder(false)
	for i := 0; i < 16; i++ {
		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		sqlMock.ExpectRollback()
	}

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

	store := newFakeBookingStore()
	payments := &scriptedPayments{}
	fixed := clock.NewFixed(time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))

	auditService := service.NewAuditService(log, noopAuditRepo{})
	conflicts := service.NewConflictDetector(store)
	reconciler := service.NewPaymentReconciler(db, log, store, auditService, payments, nil, fixed, time.Second)

	return &usecaseFixture{
		usecase:  NewBookingUsecase(db, log, store, conflicts, reconciler, auditService, fixed, "usd"),
		store:    store,
		payments: payments,
		clock:    fixed,
		ownerID:  uuid.New(),
	}
}

// noopAuditRepo satisfies the audit repository without touching SQL.
type noopAuditRepo struct{}

func (noopAuditRepo) Create(db *gorm.DB, log *entity.AuditLog) error { return nil }
func (noopAuditRepo) FindAll(db *gorm.DB, limit, offset int) ([]entity.AuditLog, int64, error) {
	return nil, 0, nil
}
func (noopAuditRepo) FindByID(db *gorm.DB, id int64) (*entity.AuditLog, error) { return nil, nil }

func createRequest(start time.Time) *dto.CreateBookingRequest {
	return &dto.CreateBookingRequest{
		StartTime:       start,
		DurationMinutes: 60,
		ServiceName:     "Haircut",
		Price:           "30.00",
	}
}

func TestCreateConfirmsThroughGateway(t *testing.T) {
	f := newUsecaseFixture(t)

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	assert.Equal(t, "confirmed", resp.Status)
	require.NotNil(t, resp.PaymentIntentID)
	assert.Equal(t, "usd", resp.Currency)
	// version 1 on insert, +1 for the intent ref, +1 for confirm
	assert.Equal(t, int64(3), resp.Version)
	assert.Equal(t, "booking-"+resp.ID.String(), f.payments.lastKey)
}

func TestCreateRejectsOverlap(t *testing.T) {
	f := newUsecaseFixture(t)
	start := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)

	_, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(start))
	require.NoError(t, err)

	_, err = f.usecase.Create(context.Background(), f.ownerID, createRequest(start.Add(30*time.Minute)))
	assert.ErrorIs(t, err, ErrBookingConflict)

	// A different owner can book the same slot
	_, err = f.usecase.Create(context.Background(), uuid.New(), createRequest(start))
	assert.NoError(t, err)
}

func TestCreateSurvivesGatewayOutage(t *testing.T) {
	f := newUsecaseFixture(t)
	f.payments.createErrs = []error{gateway.ErrUnavailable, gateway.ErrUnavailable}

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	// The booking exists and stays pending; payment is retryable
	assert.Equal(t, "pending_payment", resp.Status)
	assert.Nil(t, resp.PaymentIntentID)
	assert.Equal(t, 2, f.payments.createCalls)

	// Retry succeeds once the gateway is back
	paid, err := f.usecase.Pay(context.Background(), f.ownerID, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", paid.Status)
}

func TestCreateRejectsBadPrice(t *testing.T) {
	f := newUsecaseFixture(t)
	req := createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC))
	req.Price = "thirty dollars"

	_, err := f.usecase.Create(context.Background(), f.ownerID, req)
	assert.ErrorIs(t, err, ErrInvalidPriceFormat)
}

func TestPayIsIdempotent(t *testing.T) {
	f := newUsecaseFixture(t)

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, "confirmed", resp.Status)

	again, err := f.usecase.Pay(context.Background(), f.ownerID, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Version, again.Version)
	assert.Equal(t, 1, f.payments.createCalls)
}

func TestPayRejectsForeignBooking(t *testing.T) {
	f := newUsecaseFixture(t)

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = f.usecase.Pay(context.Background(), uuid.New(), resp.ID)
	assert.ErrorIs(t, err, ErrBookingNotOwned)
}

func TestReschedule(t *testing.T) {
	f := newUsecaseFixture(t)

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	moved, err := f.usecase.Reschedule(context.Background(), f.ownerID, resp.ID, &dto.RescheduleBookingRequest{
		StartTime:       time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		ExpectedVersion: resp.Version,
	})
	require.NoError(t, err)

	assert.Equal(t, "rescheduled", moved.Status)
	assert.Equal(t, 45, moved.DurationMinutes)
	assert.Equal(t, resp.Version+1, moved.Version)
	// Payment carries over
	assert.Equal(t, *resp.PaymentIntentID, *moved.PaymentIntentID)
}

func TestRescheduleStaleVersion(t *testing.T) {
	f := newUsecaseFixture(t)

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = f.usecase.Reschedule(context.Background(), f.ownerID, resp.ID, &dto.RescheduleBookingRequest{
		StartTime:       time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		ExpectedVersion: resp.Version - 1,
	})
	assert.ErrorIs(t, err, repository.ErrStaleVersion)
}

func TestRescheduleIntoOccupiedSlotRejected(t *testing.T) {
	f := newUsecaseFixture(t)
	first, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	second, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = f.usecase.Reschedule(context.Background(), f.ownerID, second.ID, &dto.RescheduleBookingRequest{
		StartTime:       first.StartTime.Add(30 * time.Minute),
		DurationMinutes: 60,
		ExpectedVersion: second.Version,
	})
	assert.ErrorIs(t, err, ErrBookingConflict)
}

func TestCancelReportsRefund(t *testing.T) {
	f := newUsecaseFixture(t)
	f.payments.retrieveSt = gateway.IntentStatusSucceeded

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, "confirmed", resp.Status)

	result, err := f.usecase.Cancel(context.Background(), f.ownerID, entity.RoleIDCustomer, resp.ID, &dto.CancelBookingRequest{ExpectedVersion: resp.Version})
	require.NoError(t, err)

	assert.True(t, result.RefundRequired)
	assert.Equal(t, "cancelled", result.Booking.Status)
	assert.Equal(t, 0, f.payments.cancelCalls)
}

func TestCompleteAfterWindowElapsed(t *testing.T) {
	f := newUsecaseFixture(t)
	start := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(start))
	require.NoError(t, err)

	// Too early
	_, err = f.usecase.Complete(context.Background(), f.ownerID, entity.RoleIDCustomer, resp.ID, &dto.CompleteBookingRequest{ExpectedVersion: resp.Version})
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)

	f.clock.Instant = start.Add(2 * time.Hour)
	done, err := f.usecase.Complete(context.Background(), f.ownerID, entity.RoleIDCustomer, resp.ID, &dto.CompleteBookingRequest{ExpectedVersion: resp.Version})
	require.NoError(t, err)
	assert.Equal(t, "completed", done.Status)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newUsecaseFixture(t)

	first, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	f.clock.Instant = first.EndTime.Add(time.Hour)
	_, err = f.usecase.Complete(context.Background(), f.ownerID, entity.RoleIDCustomer, first.ID, &dto.CompleteBookingRequest{ExpectedVersion: first.Version})
	require.NoError(t, err)

	all, err := f.usecase.List(context.Background(), f.ownerID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)

	completed, err := f.usecase.List(context.Background(), f.ownerID, "completed")
	require.NoError(t, err)
	assert.Equal(t, 1, completed.Total)

	_, err = f.usecase.List(context.Background(), f.ownerID, "nonsense")
	assert.ErrorIs(t, err, ErrInvalidStatusFilter)
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newUsecaseFixture(t)

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = f.usecase.Get(context.Background(), uuid.New(), entity.RoleIDCustomer, resp.ID)
	assert.ErrorIs(t, err, ErrBookingNotOwned)

	// Admins can read any booking
	got, err := f.usecase.Get(context.Background(), uuid.New(), entity.RoleIDAdmin, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, got.ID)

	_, err = f.usecase.Get(context.Background(), f.ownerID, entity.RoleIDCustomer, uuid.New())
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestAdminDelete(t *testing.T) {
	f := newUsecaseFixture(t)

	resp, err := f.usecase.Create(context.Background(), f.ownerID, createRequest(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	require.NoError(t, f.usecase.AdminDelete(context.Background(), uuid.New(), resp.ID))

	_, err = f.usecase.Get(context.Background(), f.ownerID, entity.RoleIDCustomer, resp.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	assert.ErrorIs(t, f.usecase.AdminDelete(context.Background(), uuid.New(), resp.ID), ErrBookingNotFound)
}
