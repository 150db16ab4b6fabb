package service

import (
	"context"
	"testing"
	"time"

	"parkmarket/internal/database"
	"parkmarket/internal/models"
	"parkmarket/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpaceService(db *database.DB, cache *repository.MemoryCacheRepository, bus *recordingBus) *SpaceService {
	logger := zerolog.Nop()
	svc := NewSpaceService(db, nil, nil, &logger)
	// Avoid typed-nil interfaces: wire the optional pieces only when set
	if cache != nil {
		svc.cache = cache
	}
	if bus != nil {
		svc.bus = bus
	}
	return svc
}

func TestResolveToken(t *testing.T) {
	db := newTestStore(t)
	seedSpace(t, db, "lot-p66", "P66", 3, nil)
	svc := newSpaceService(db, nil, nil)
	ctx := context.Background()

	space, ordinal, err := svc.ResolveToken(ctx, "2P66")
	require.NoError(t, err)
	assert.Equal(t, "lot-p66", space.ID)
	assert.Equal(t, 2, ordinal)

	_, _, err = svc.ResolveToken(ctx, "2Z99")
	assert.ErrorIs(t, err, database.ErrSpaceNotFound)

	_, _, err = svc.ResolveToken(ctx, "P66")
	assert.ErrorIs(t, err, models.ErrBadToken)
}

func TestSlotAvailability(t *testing.T) {
	db := newTestStore(t)
	seedSpace(t, db, "lot-p66", "P66", 2, nil)
	bus := &recordingBus{}
	reservations := newReservationService(db, bus)
	svc := newSpaceService(db, nil, nil)
	ctx := context.Background()

	start := tomorrowNoon()
	_, err := reservations.Create(ctx, 1, "AA111", "lot-p66", 1, start, start.Add(2*time.Hour))
	require.NoError(t, err)

	ok, err := svc.SlotAvailability(ctx, "1P66", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.SlotAvailability(ctx, "2P66", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown space reads as unavailable, not as an error
	ok, err = svc.SlotAvailability(ctx, "1Z99", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown ordinal in a known space likewise
	ok, err = svc.SlotAvailability(ctx, "99P66", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SlotAvailability(ctx, "garbage", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, models.ErrBadToken)
}

func TestCalendar(t *testing.T) {
	db := newTestStore(t)
	seedSpace(t, db, "lot-p66", "P66", 1, nil)
	reservations := newReservationService(db, nil)
	svc := newSpaceService(db, nil, nil)
	ctx := context.Background()

	start := tomorrowNoon()
	_, err := reservations.Create(ctx, 1, "AA111", "lot-p66", 1, start, start.Add(2*time.Hour))
	require.NoError(t, err)

	calendar, err := svc.Calendar(ctx, "1P66", time.Now(), 3)
	require.NoError(t, err)
	require.Len(t, calendar, 3)

	// Day 0 is today (empty), day 1 carries the reservation
	assert.Empty(t, calendar[0].Reserved)
	require.Len(t, calendar[1].Reserved, 1)
	assert.True(t, calendar[1].Reserved[0].Start.Equal(start))
	assert.Equal(t, models.StatusProcessing, calendar[1].Reserved[0].Status)
	assert.Empty(t, calendar[2].Reserved)

	t.Run("DefaultDays", func(t *testing.T) {
		calendar, err := svc.Calendar(ctx, "1P66", time.Now(), 0)
		require.NoError(t, err)
		assert.Len(t, calendar, models.DefaultCalendarDays)
	})

	t.Run("UnknownSlot", func(t *testing.T) {
		_, err := svc.Calendar(ctx, "9P66", time.Now(), 3)
		assert.ErrorIs(t, err, database.ErrSlotNotFound)
	})
}

func TestCalendar_Caching(t *testing.T) {
	db := newTestStore(t)
	seedSpace(t, db, "lot-p66", "P66", 1, nil)
	cache := repository.NewMemoryCacheRepository(time.Minute)
	reservations := newReservationService(db, nil)
	svc := newSpaceService(db, cache, nil)
	ctx := context.Background()

	first, err := svc.Calendar(ctx, "1P66", time.Now(), 3)
	require.NoError(t, err)
	assert.Empty(t, first[1].Reserved)

	start := tomorrowNoon()
	_, err = reservations.Create(ctx, 1, "AA111", "lot-p66", 1, start, start.Add(time.Hour))
	require.NoError(t, err)

	// Cached copy is served until an invalidation arrives
	cached, err := svc.Calendar(ctx, "1P66", time.Now(), 3)
	require.NoError(t, err)
	assert.Empty(t, cached[1].Reserved)

	require.NoError(t, cache.InvalidateSlot(ctx, "lot-p66", 1))

	fresh, err := svc.Calendar(ctx, "1P66", time.Now(), 3)
	require.NoError(t, err)
	assert.Len(t, fresh[1].Reserved, 1)
}

func TestRemoveSlot(t *testing.T) {
	db := newTestStore(t)
	seedSpace(t, db, "lot-p66", "P66", 3, nil)
	cache := repository.NewMemoryCacheRepository(time.Minute)
	bus := &recordingBus{}
	svc := newSpaceService(db, cache, bus)
	ctx := context.Background()

	// Warm the calendar cache, then remove a slot
	_, err := svc.Calendar(ctx, "3P66", time.Now(), 3)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveSlot(ctx, "2P66", false))
	assert.Contains(t, bus.types, "slot_removed")

	slots, err := svc.ListSlots(ctx, "lot-p66")
	require.NoError(t, err)
	require.Len(t, slots, 2)

	// The space's calendars were invalidated wholesale: the old slot 3
	// no longer exists and its cached calendar must not resurface
	_, err = svc.Calendar(ctx, "3P66", time.Now(), 3)
	assert.ErrorIs(t, err, database.ErrSlotNotFound)

	t.Run("Forced", func(t *testing.T) {
		require.NoError(t, svc.RemoveSlot(ctx, "1P66", true))

		slots, err := svc.ListSlots(ctx, "lot-p66")
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, 2, slots[0].Ordinal, "forced removal leaves the gap")
	})

	t.Run("Unknown", func(t *testing.T) {
		err := svc.RemoveSlot(ctx, "9P66", false)
		assert.ErrorIs(t, err, database.ErrSlotNotFound)
	})
}

func TestAddSlot(t *testing.T) {
	db := newTestStore(t)
	seedSpace(t, db, "lot-p66", "P66", 2, nil)
	svc := newSpaceService(db, nil, nil)
	ctx := context.Background()

	slot, err := svc.AddSlot(ctx, "lot-p66")
	require.NoError(t, err)
	assert.Equal(t, 3, slot.Ordinal)

	_, err = svc.AddSlot(ctx, "nope")
	assert.ErrorIs(t, err, database.ErrSpaceNotFound)
}
