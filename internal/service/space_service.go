package service

import (
	"context"
	"errors"
	"time"

	"parkmarket/internal/database"
	"parkmarket/internal/domain"
	"parkmarket/internal/events"
	"parkmarket/internal/models"

	"github.com/rs/zerolog"
)

// SpaceService covers the slot registry side: spaces, slots, the
// renumbering removal and the read-side availability calendar.
type SpaceService struct {
	store  domain.Store
	cache  domain.CacheRepository
	bus    domain.EventPublisher
	logger *zerolog.Logger
}

func NewSpaceService(store domain.Store, cache domain.CacheRepository, bus domain.EventPublisher, logger *zerolog.Logger) *SpaceService {
	return &SpaceService{
		store:  store,
		cache:  cache,
		bus:    bus,
		logger: logger,
	}
}

func (s *SpaceService) ListSpaces(ctx context.Context) ([]*models.ParkingSpace, error) {
	return s.store.ListSpaces(ctx)
}

func (s *SpaceService) GetSpace(ctx context.Context, id string) (*models.ParkingSpace, error) {
	return s.store.GetSpace(ctx, id)
}

func (s *SpaceService) ListSlots(ctx context.Context, spaceID string) ([]*models.Slot, error) {
	return s.store.ListSlots(ctx, spaceID)
}

func (s *SpaceService) SpaceSchedule(ctx context.Context, spaceID string) ([]*models.ScheduleWindow, error) {
	return s.store.SpaceSchedule(ctx, spaceID)
}

func (s *SpaceService) AddSlot(ctx context.Context, spaceID string) (*models.Slot, error) {
	return s.store.AddSlot(ctx, spaceID)
}

// ResolveToken maps an external slot token like "5P66" to the space it
// belongs to and the slot ordinal.
func (s *SpaceService) ResolveToken(ctx context.Context, token string) (*models.ParkingSpace, int, error) {
	ordinal, code, err := models.ParseToken(token)
	if err != nil {
		return nil, 0, err
	}
	space, err := s.store.GetSpaceByCode(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	return space, ordinal, nil
}

// SlotAvailability answers the availability question for an external
// token. Unknown tokens read as unavailable rather than erroring, per
// the checker's contract; existence is the lifecycle manager's problem.
func (s *SpaceService) SlotAvailability(ctx context.Context, token string, start, end time.Time) (bool, error) {
	space, ordinal, err := s.ResolveToken(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrSpaceNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.store.IsSlotAvailable(ctx, space.ID, ordinal, start, end)
}

// RemoveSlot removes the slot named by the token with full renumbering,
// or with a direct delete when force is set. Force removal is operator
// recovery: it drops the contiguous-ordinal guarantee on purpose.
func (s *SpaceService) RemoveSlot(ctx context.Context, token string, force bool) error {
	space, ordinal, err := s.ResolveToken(ctx, token)
	if err != nil {
		return err
	}

	if force {
		err = s.store.ForceRemoveSlot(ctx, space.ID, ordinal)
	} else {
		err = s.store.RemoveSlotWithRenumbering(ctx, space.ID, ordinal)
	}
	if err != nil {
		return err
	}

	// Все календари пространства устарели после перенумерации
	if s.cache != nil {
		if err := s.cache.InvalidateSpace(ctx, space.ID); err != nil {
			s.logger.Warn().Err(err).Str("space_id", space.ID).Msg("calendar invalidation failed")
		}
	}

	if s.bus != nil {
		payload := events.SlotEventPayload{SpaceID: space.ID, Ordinal: ordinal, Forced: force}
		if err := s.bus.PublishJSON(events.EventSlotRemoved, payload); err != nil {
			s.logger.Error().Err(err).Str("space_id", space.ID).Int("ordinal", ordinal).Msg("publish event error")
		}
	}
	return nil
}

// Calendar returns the reserved intervals of a slot for `days` days
// starting at `from` (midnight-truncated). Results are cached; any
// reservation or slot mutation invalidates the affected keys, so a
// short TTL only bounds staleness across process restarts.
func (s *SpaceService) Calendar(ctx context.Context, token string, from time.Time, days int) ([]models.CalendarDay, error) {
	space, ordinal, err := s.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = models.DefaultCalendarDays
	}

	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	fromKey := from.Format(models.DateLayout)

	if s.cache != nil {
		if cached, err := s.cache.GetCalendar(ctx, space.ID, ordinal, fromKey, days); err == nil && cached != nil {
			return cached, nil
		}
	}

	if _, err := s.store.GetSlot(ctx, space.ID, ordinal); err != nil {
		return nil, err
	}

	calendar := make([]models.CalendarDay, 0, days)
	for i := 0; i < days; i++ {
		dayStart := from.AddDate(0, 0, i)
		dayEnd := dayStart.AddDate(0, 0, 1)

		reservations, err := s.store.SlotReservations(ctx, space.ID, ordinal, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}

		day := models.CalendarDay{Date: dayStart.Format(models.DateLayout), Reserved: []models.ReservedInterval{}}
		for _, r := range reservations {
			day.Reserved = append(day.Reserved, models.ReservedInterval{
				Start:  r.StartAt,
				End:    r.EndAt,
				Status: r.Status,
			})
		}
		calendar = append(calendar, day)
	}

	if s.cache != nil {
		if err := s.cache.SetCalendar(ctx, space.ID, ordinal, fromKey, days, calendar); err != nil {
			s.logger.Warn().Err(err).Str("space_id", space.ID).Int("ordinal", ordinal).Msg("calendar cache write failed")
		}
	}
	return calendar, nil
}
