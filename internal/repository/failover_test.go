package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"parkmarket/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int) ([]models.CalendarDay, error) {
	args := m.Called(ctx, spaceID, ordinal, from, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CalendarDay), args.Error(1)
}

func (m *mockCache) SetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int, calendar []models.CalendarDay) error {
	args := m.Called(ctx, spaceID, ordinal, from, days, calendar)
	return args.Error(0)
}

func (m *mockCache) InvalidateSlot(ctx context.Context, spaceID string, ordinal int) error {
	args := m.Called(ctx, spaceID, ordinal)
	return args.Error(0)
}

func (m *mockCache) InvalidateSpace(ctx context.Context, spaceID string) error {
	args := m.Called(ctx, spaceID)
	return args.Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverCacheRepository(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverCacheRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		calendar := testCalendar()
		primary.On("GetCalendar", ctx, "s1", 1, "2026-09-01", 7).Return(calendar, nil).Once()

		got, err := repo.GetCalendar(ctx, "s1", 1, "2026-09-01", 7)
		assert.NoError(t, err)
		assert.Equal(t, calendar, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		calendar := testCalendar()
		primary.On("GetCalendar", ctx, "s2", 1, "2026-09-01", 7).Return(nil, errors.New("fail")).Once()
		fallback.On("GetCalendar", ctx, "s2", 1, "2026-09-01", 7).Return(calendar, nil).Once()

		got, err := repo.GetCalendar(ctx, "s2", 1, "2026-09-01", 7)
		assert.NoError(t, err)
		assert.Equal(t, calendar, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		calendar := testCalendar()
		primary.On("GetCalendar", ctx, "s3", 1, "2026-09-01", 7).Return(calendar, nil).Once()

		got, err := repo.GetCalendar(ctx, "s3", 1, "2026-09-01", 7)
		assert.NoError(t, err)
		assert.Equal(t, calendar, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("GetCalendar", ctx, "s4", 1, "2026-09-01", 7).Return(nil, errors.New("still fail")).Once()
		fallback.On("GetCalendar", ctx, "s4", 1, "2026-09-01", 7).Return(nil, nil).Once()

		_, err := repo.GetCalendar(ctx, "s4", 1, "2026-09-01", 7)
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetCalendarSuccess", func(t *testing.T) {
		repo.isDown.Store(false)
		calendar := testCalendar()
		primary.On("SetCalendar", ctx, "s5", 1, "2026-09-01", 7, calendar).Return(nil).Once()

		err := repo.SetCalendar(ctx, "s5", 1, "2026-09-01", 7, calendar)
		assert.NoError(t, err)
		primary.AssertExpectations(t)
	})

	t.Run("SetCalendarFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		calendar := testCalendar()
		primary.On("SetCalendar", ctx, "s6", 1, "2026-09-01", 7, calendar).Return(errors.New("fail")).Once()
		fallback.On("SetCalendar", ctx, "s6", 1, "2026-09-01", 7, calendar).Return(nil).Once()

		err := repo.SetCalendar(ctx, "s6", 1, "2026-09-01", 7, calendar)
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidateSlotReachesBothSides", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("InvalidateSlot", ctx, "s7", 2).Return(nil).Once()
		fallback.On("InvalidateSlot", ctx, "s7", 2).Return(nil).Once()

		err := repo.InvalidateSlot(ctx, "s7", 2)
		assert.NoError(t, err)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidateSpacePrimaryDown", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("InvalidateSpace", ctx, "s8").Return(errors.New("fail")).Once()
		fallback.On("InvalidateSpace", ctx, "s8").Return(nil).Once()

		err := repo.InvalidateSpace(ctx, "s8")
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("CheckRateLimitSuccess", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "key-1", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "key-1", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("CheckRateLimitFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "key-2", 10, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "key-2", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "key-2", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("GetCalendarAlreadyDown", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now()
		fallback.On("GetCalendar", ctx, "s9", 1, "2026-09-01", 7).Return(nil, nil).Once()

		_, err := repo.GetCalendar(ctx, "s9", 1, "2026-09-01", 7)
		assert.NoError(t, err)
		fallback.AssertExpectations(t)
	})
}
