package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"parkmarket/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedTestSpace creates a space with `slots` slots and one vehicle
// (plate AA111, owner 1) to hang reservations on.
func seedTestSpace(t *testing.T, db *DB, id, code string, slots int) {
	t.Helper()
	ctx := context.Background()
	err := db.UpsertSpace(ctx, &models.ParkingSpace{
		ID:           id,
		Code:         code,
		Address:      "test address",
		HourlyRate:   10.0,
		OwnerAdminID: 1001,
	})
	require.NoError(t, err)
	require.NoError(t, db.EnsureSlots(ctx, id, slots))
	require.NoError(t, db.UpsertVehicle(ctx, &models.Vehicle{Plate: "AA111", OwnerID: 1}))
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping())
}

func TestSpaces(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	space := &models.ParkingSpace{
		ID:               "lot-p66",
		Code:             "P66",
		Address:          "ул. Парковая, 66",
		HourlyRate:       150,
		MaxDurationHours: null.IntFrom(72),
		Description:      "крытая",
		OwnerAdminID:     1001,
	}
	require.NoError(t, db.UpsertSpace(ctx, space))

	t.Run("GetSpace", func(t *testing.T) {
		got, err := db.GetSpace(ctx, "lot-p66")
		require.NoError(t, err)
		assert.Equal(t, "P66", got.Code)
		assert.Equal(t, 150.0, got.HourlyRate)
		assert.Equal(t, int64(72), got.MaxDurationHours.Int64)
		assert.Equal(t, "крытая", got.Description)
	})

	t.Run("GetSpaceByCode", func(t *testing.T) {
		got, err := db.GetSpaceByCode(ctx, "P66")
		require.NoError(t, err)
		assert.Equal(t, "lot-p66", got.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.GetSpace(ctx, "nope")
		assert.ErrorIs(t, err, ErrSpaceNotFound)

		_, err = db.GetSpaceByCode(ctx, "Z99")
		assert.ErrorIs(t, err, ErrSpaceNotFound)
	})

	t.Run("UpsertUpdates", func(t *testing.T) {
		space.HourlyRate = 200
		space.Description = ""
		require.NoError(t, db.UpsertSpace(ctx, space))

		got, err := db.GetSpace(ctx, "lot-p66")
		require.NoError(t, err)
		assert.Equal(t, 200.0, got.HourlyRate)
		assert.Empty(t, got.Description)
	})

	t.Run("ListOrderedByCode", func(t *testing.T) {
		require.NoError(t, db.UpsertSpace(ctx, &models.ParkingSpace{
			ID: "lot-a1", Code: "A1", Address: "x", HourlyRate: 90, OwnerAdminID: 1002,
		}))

		spaces, err := db.ListSpaces(ctx)
		require.NoError(t, err)
		require.Len(t, spaces, 2)
		assert.Equal(t, "A1", spaces[0].Code)
		assert.Equal(t, "P66", spaces[1].Code)
	})
}

func TestVehicles(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertVehicle(ctx, &models.Vehicle{
		Plate: "A123BC77", OwnerID: 2001, Description: "demo",
	}))

	v, err := db.GetVehicle(ctx, "A123BC77")
	require.NoError(t, err)
	assert.Equal(t, int64(2001), v.OwnerID)
	assert.Equal(t, "demo", v.Description)

	owner, err := db.VehicleOwner(ctx, "A123BC77")
	require.NoError(t, err)
	assert.Equal(t, int64(2001), owner)

	// Upsert transfers ownership
	require.NoError(t, db.UpsertVehicle(ctx, &models.Vehicle{Plate: "A123BC77", OwnerID: 2002}))
	owner, err = db.VehicleOwner(ctx, "A123BC77")
	require.NoError(t, err)
	assert.Equal(t, int64(2002), owner)

	_, err = db.GetVehicle(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, ErrVehicleNotFound)

	_, err = db.VehicleOwner(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestSchedule(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTestSpace(t, db, "lot-p66", "P66", 1)

	t.Run("NoWindowMeansOpenAllDay", func(t *testing.T) {
		open, close, explicit, err := db.OperatingWindow(ctx, "lot-p66", 1)
		require.NoError(t, err)
		assert.False(t, explicit)
		assert.Equal(t, 0, open)
		assert.Equal(t, 24*60, close)
	})

	t.Run("UpsertAndRead", func(t *testing.T) {
		err := db.UpsertScheduleWindow(ctx, &models.ScheduleWindow{
			SpaceID: "lot-p66", Weekday: 1, Open: 7 * 60, Close: 23 * 60,
		})
		require.NoError(t, err)

		open, close, explicit, err := db.OperatingWindow(ctx, "lot-p66", 1)
		require.NoError(t, err)
		assert.True(t, explicit)
		assert.Equal(t, 7*60, open)
		assert.Equal(t, 23*60, close)

		// Update the same weekday
		err = db.UpsertScheduleWindow(ctx, &models.ScheduleWindow{
			SpaceID: "lot-p66", Weekday: 1, Open: 8 * 60, Close: 22 * 60,
		})
		require.NoError(t, err)

		open, close, _, err = db.OperatingWindow(ctx, "lot-p66", 1)
		require.NoError(t, err)
		assert.Equal(t, 8*60, open)
		assert.Equal(t, 22*60, close)
	})

	t.Run("InvalidWindows", func(t *testing.T) {
		err := db.UpsertScheduleWindow(ctx, &models.ScheduleWindow{
			SpaceID: "lot-p66", Weekday: 2, Open: 600, Close: 600,
		})
		assert.Error(t, err)

		err = db.UpsertScheduleWindow(ctx, &models.ScheduleWindow{
			SpaceID: "lot-p66", Weekday: 2, Open: 600, Close: 25 * 60,
		})
		assert.Error(t, err)
	})

	t.Run("SpaceSchedule", func(t *testing.T) {
		err := db.UpsertScheduleWindow(ctx, &models.ScheduleWindow{
			SpaceID: "lot-p66", Weekday: 0, Open: 9 * 60, Close: 21 * 60,
		})
		require.NoError(t, err)

		windows, err := db.SpaceSchedule(ctx, "lot-p66")
		require.NoError(t, err)
		require.Len(t, windows, 2)
		assert.Equal(t, 0, windows[0].Weekday)
		assert.Equal(t, 1, windows[1].Weekday)
	})
}

func TestSlots(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTestSpace(t, db, "lot-p66", "P66", 3)

	t.Run("ListOrdered", func(t *testing.T) {
		slots, err := db.ListSlots(ctx, "lot-p66")
		require.NoError(t, err)
		require.Len(t, slots, 3)
		for i, slot := range slots {
			assert.Equal(t, i+1, slot.Ordinal)
			assert.True(t, slot.Available)
		}
	})

	t.Run("EnsureSlotsIdempotent", func(t *testing.T) {
		require.NoError(t, db.SetSlotAvailability(ctx, "lot-p66", 2, false))
		require.NoError(t, db.EnsureSlots(ctx, "lot-p66", 3))

		slot, err := db.GetSlot(ctx, "lot-p66", 2)
		require.NoError(t, err)
		assert.False(t, slot.Available, "re-running the seed must not reset availability")

		space, err := db.GetSpace(ctx, "lot-p66")
		require.NoError(t, err)
		assert.Equal(t, 3, space.SlotCount)
	})

	t.Run("AddSlotAppends", func(t *testing.T) {
		slot, err := db.AddSlot(ctx, "lot-p66")
		require.NoError(t, err)
		assert.Equal(t, 4, slot.Ordinal)
		assert.True(t, slot.Available)

		space, err := db.GetSpace(ctx, "lot-p66")
		require.NoError(t, err)
		assert.Equal(t, 4, space.SlotCount)
	})

	t.Run("AddSlotUnknownSpace", func(t *testing.T) {
		_, err := db.AddSlot(ctx, "nope")
		assert.ErrorIs(t, err, ErrSpaceNotFound)
	})

	t.Run("SetAvailabilityUnknownSlot", func(t *testing.T) {
		err := db.SetSlotAvailability(ctx, "lot-p66", 99, true)
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})

	t.Run("GetSlotNotFound", func(t *testing.T) {
		_, err := db.GetSlot(ctx, "lot-p66", 99)
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestStoredTimesRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedTestSpace(t, db, "lot-p66", "P66", 1)

	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.Local)
	r := &models.Reservation{
		SpaceID:     "lot-p66",
		SlotOrdinal: 1,
		VehicleID:   "AA111",
		StartAt:     start,
		EndAt:       start.Add(2 * time.Hour),
		Status:      models.StatusProcessing,
		Fee:         20,
	}
	require.NoError(t, db.CreateReservationWithLock(ctx, r))

	got, err := db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.StartAt.Equal(start))
	assert.True(t, got.EndAt.Equal(start.Add(2*time.Hour)))
}
