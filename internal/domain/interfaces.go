package domain

import (
	"context"
	"time"

	"parkmarket/internal/models"
)

// Store is the persistence surface the services depend on. Implemented
// by database.DB; the split keeps services testable against fakes.
type Store interface {
	// spaces
	GetSpace(ctx context.Context, id string) (*models.ParkingSpace, error)
	GetSpaceByCode(ctx context.Context, code string) (*models.ParkingSpace, error)
	ListSpaces(ctx context.Context) ([]*models.ParkingSpace, error)

	// slots
	GetSlot(ctx context.Context, spaceID string, ordinal int) (*models.Slot, error)
	ListSlots(ctx context.Context, spaceID string) ([]*models.Slot, error)
	AddSlot(ctx context.Context, spaceID string) (*models.Slot, error)
	SetSlotAvailability(ctx context.Context, spaceID string, ordinal int, available bool) error
	RemoveSlotWithRenumbering(ctx context.Context, spaceID string, ordinal int) error
	ForceRemoveSlot(ctx context.Context, spaceID string, ordinal int) error

	// reservations
	IsSlotAvailable(ctx context.Context, spaceID string, ordinal int, start, end time.Time) (bool, error)
	CreateReservationWithLock(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	UpdateReservationStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	CompleteReservation(ctx context.Context, id, fromVersion int64) error
	SlotReservations(ctx context.Context, spaceID string, ordinal int, from, to time.Time) ([]*models.Reservation, error)
	UserReservations(ctx context.Context, ownerID int64) ([]*models.Reservation, error)
	StaleProcessing(ctx context.Context, cutoff time.Time) ([]*models.Reservation, error)

	// vehicle directory
	VehicleOwner(ctx context.Context, plate string) (int64, error)

	// schedule store
	OperatingWindow(ctx context.Context, spaceID string, weekday int) (open, close int, explicit bool, err error)
	SpaceSchedule(ctx context.Context, spaceID string) ([]*models.ScheduleWindow, error)
}

// CacheRepository serves the read-side availability calendar and API
// rate limiting. The booking engine never consults it: availability
// decisions always re-read the ledger.
type CacheRepository interface {
	GetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int) ([]models.CalendarDay, error)
	SetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int, calendar []models.CalendarDay) error
	InvalidateSlot(ctx context.Context, spaceID string, ordinal int) error
	InvalidateSpace(ctx context.Context, spaceID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
