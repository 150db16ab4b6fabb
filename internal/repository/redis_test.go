package repository

import (
	"context"
	"testing"
	"time"

	"parkmarket/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalendar() []models.CalendarDay {
	return []models.CalendarDay{
		{
			Date: "2026-09-01",
			Reserved: []models.ReservedInterval{
				{
					Start:  time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
					End:    time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
					Status: models.StatusPaid,
				},
			},
		},
		{Date: "2026-09-02", Reserved: []models.ReservedInterval{}},
	}
}

func TestRedisCacheRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisCacheRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetCalendar", func(t *testing.T) {
		calendar := testCalendar()

		err := repo.SetCalendar(ctx, "space-1", 3, "2026-09-01", 2, calendar)
		require.NoError(t, err)

		got, err := repo.GetCalendar(ctx, "space-1", 3, "2026-09-01", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, calendar[0].Date, got[0].Date)
		require.Len(t, got[0].Reserved, 1)
		assert.Equal(t, models.StatusPaid, got[0].Reserved[0].Status)
		assert.True(t, calendar[0].Reserved[0].Start.Equal(got[0].Reserved[0].Start))
	})

	t.Run("GetMissingCalendar", func(t *testing.T) {
		got, err := repo.GetCalendar(ctx, "space-1", 99, "2026-09-01", 2)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("InvalidateSlot", func(t *testing.T) {
		require.NoError(t, repo.SetCalendar(ctx, "space-2", 1, "2026-09-01", 7, testCalendar()))
		require.NoError(t, repo.SetCalendar(ctx, "space-2", 1, "2026-09-08", 7, testCalendar()))
		require.NoError(t, repo.SetCalendar(ctx, "space-2", 2, "2026-09-01", 7, testCalendar()))

		err := repo.InvalidateSlot(ctx, "space-2", 1)
		require.NoError(t, err)

		got, _ := repo.GetCalendar(ctx, "space-2", 1, "2026-09-01", 7)
		assert.Nil(t, got)
		got, _ = repo.GetCalendar(ctx, "space-2", 1, "2026-09-08", 7)
		assert.Nil(t, got)

		// Другой слот не затронут
		got, _ = repo.GetCalendar(ctx, "space-2", 2, "2026-09-01", 7)
		assert.NotNil(t, got)
	})

	t.Run("InvalidateSpace", func(t *testing.T) {
		require.NoError(t, repo.SetCalendar(ctx, "space-3", 1, "2026-09-01", 7, testCalendar()))
		require.NoError(t, repo.SetCalendar(ctx, "space-3", 5, "2026-09-01", 7, testCalendar()))
		require.NoError(t, repo.SetCalendar(ctx, "space-4", 1, "2026-09-01", 7, testCalendar()))

		err := repo.InvalidateSpace(ctx, "space-3")
		require.NoError(t, err)

		got, _ := repo.GetCalendar(ctx, "space-3", 1, "2026-09-01", 7)
		assert.Nil(t, got)
		got, _ = repo.GetCalendar(ctx, "space-3", 5, "2026-09-01", 7)
		assert.Nil(t, got)
		got, _ = repo.GetCalendar(ctx, "space-4", 1, "2026-09-01", 7)
		assert.NotNil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "api-key-1"
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisCacheRepository(nil, time.Hour)
		_, err := repo.GetCalendar(ctx, "space-1", 1, "2026-09-01", 7)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		err := Ping(ctx, client)
		assert.NoError(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		err := Close(client)
		assert.NoError(t, err)
	})
}
