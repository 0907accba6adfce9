package service

import (
	"testing"
	"time"

	"online-booking-backend/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func activeBooking(id uuid.UUID, start time.Time, minutes int) entity.Booking {
	return entity.Booking{
		ID:              id,
		StartTime:       start,
		DurationMinutes: minutes,
		Status:          entity.BookingStatusConfirmed,
	}
}

func TestHasOverlap(t *testing.T) {
	repo := &mockBookingRepo{}
	detector := NewConflictDetector(repo)
	ownerID := uuid.New()

	existing := activeBooking(uuid.New(), time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), 60)
	repo.On("FindActiveByOwner", mock.Anything, ownerID).Return([]entity.Booking{existing}, nil)

	tests := []struct {
		name    string
		window  entity.Window
		overlap bool
	}{
		{"same slot", entity.Window{Start: existing.StartTime, DurationMinutes: 60}, true},
		{"straddles start", entity.Window{Start: existing.StartTime.Add(-30 * time.Minute), DurationMinutes: 45}, true},
		{"adjacent after", entity.Window{Start: existing.StartTime.Add(time.Hour), DurationMinutes: 30}, false},
		{"adjacent before", entity.Window{Start: existing.StartTime.Add(-time.Hour), DurationMinutes: 60}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overlap, err := detector.HasOverlap(nil, ownerID, tt.window, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.overlap, overlap)
		})
	}
}

func TestHasOverlapExcludesRescheduledBooking(t *testing.T) {
	repo := &mockBookingRepo{}
	detector := NewConflictDetector(repo)
	ownerID := uuid.New()

	existing := activeBooking(uuid.New(), time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), 60)
	repo.On("FindActiveByOwner", mock.Anything, ownerID).Return([]entity.Booking{existing}, nil)

	// Moving a booking onto its own current slot is not a conflict
	window := entity.Window{Start: existing.StartTime.Add(15 * time.Minute), DurationMinutes: 60}
	overlap, err := detector.HasOverlap(nil, ownerID, window, &existing.ID)
	require.NoError(t, err)
	assert.False(t, overlap)

	// But it still conflicts with everyone else
	other := uuid.New()
	overlap, err = detector.HasOverlap(nil, ownerID, window, &other)
	require.NoError(t, err)
	assert.True(t, overlap)
}
