package repository

import (
	"regexp"
	"testing"
	"time"

	"online-booking-backend/internal/domain/entity"
	domainRepo "online-booking-backend/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
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

	return db, mock
}

func testBooking(version int64) *entity.Booking {
	ref := "pi_test_123"
	return &entity.Booking{
		ID:              uuid.New(),
		OwnerID:         uuid.New(),
		StartTime:       time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		ServiceName:     "Haircut",
		Price:           decimal.RequireFromString("30.00"),
		Currency:        "usd",
		Status:          entity.BookingStatusConfirmed,
		PaymentIntentID: &ref,
		Version:         version,
	}
}

func TestUpdateWithVersionSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository()
	booking := testBooking(3)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "bookings" SET`)).
		WithArgs(
			sqlmock.AnyArg(), // duration_minutes
			sqlmock.AnyArg(), // notes
			sqlmock.AnyArg(), // payment_intent_id
			sqlmock.AnyArg(), // start_time
			sqlmock.AnyArg(), // status
			sqlmock.AnyArg(), // updated_at
			sqlmock.AnyArg(), // version
			booking.ID,
			int64(3),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateWithVersion(db, booking, 3)
	require.NoError(t, err)

	// The in-memory row follows the stored one
	assert.Equal(t, int64(4), booking.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithVersionStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository()
	booking := testBooking(3)

	// Another writer already bumped the row to version 4: zero rows match.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "bookings" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateWithVersion(db, booking, 3)
	assert.ErrorIs(t, err, domainRepo.ErrStaleVersion)

	// The local version is untouched on failure
	assert.Equal(t, int64(3), booking.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bookings" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	booking, err := repo.FindByID(db, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, booking)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPaymentIntentIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bookings" WHERE payment_intent_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	booking, err := repo.FindByPaymentIntentID(db, "pi_missing")
	require.NoError(t, err)
	assert.Nil(t, booking)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindStalePendingWithIntent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository()

	id := uuid.New()
	cutoff := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "status", "payment_intent_id", "version"}).
		AddRow(id, "pending_payment", "pi_stale", int64(2))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bookings" WHERE status = $1 AND payment_intent_id IS NOT NULL AND updated_at < $2`)).
		WithArgs("pending_payment", cutoff).
		WillReturnRows(rows)

	stale, err := repo.FindStalePendingWithIntent(db, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, id, stale[0].ID)
	assert.Equal(t, int64(2), stale[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
