package service

import (
	"context"
	"time"

	"parkmarket/internal/database"
	"parkmarket/internal/domain"
	"parkmarket/internal/events"
	"parkmarket/internal/models"

	"github.com/rs/zerolog"
)

// ReservationService is the reservation lifecycle manager. It owns the
// state machine processing -> paid -> complete (with cancellation out
// of processing/paid) and composes the availability check, the fee
// calculator and the schedule store on creation.
type ReservationService struct {
	store          domain.Store
	bus            domain.EventPublisher
	maxAdvanceDays int
	logger         *zerolog.Logger
}

func NewReservationService(store domain.Store, bus domain.EventPublisher, maxAdvanceDays int, logger *zerolog.Logger) *ReservationService {
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	return &ReservationService{
		store:          store,
		bus:            bus,
		maxAdvanceDays: maxAdvanceDays,
		logger:         logger,
	}
}

func (s *ReservationService) ValidateInterval(start, end time.Time) error {
	if !end.After(start) {
		return database.ErrInvalidInterval
	}
	if start.Before(time.Now()) {
		return database.ErrPastStart
	}
	if start.After(time.Now().AddDate(0, 0, s.maxAdvanceDays)) {
		return database.ErrTooFarAhead
	}
	return nil
}

// Create books a slot for the vehicle over [start, end). The fee is
// fixed here and never recomputed. The slot's availability flag is left
// alone: it tracks current occupancy, not future bookings.
func (s *ReservationService) Create(ctx context.Context, userID int64, vehicleID, spaceID string, slotOrdinal int, start, end time.Time) (*models.Reservation, error) {
	if err := s.ValidateInterval(start, end); err != nil {
		return nil, err
	}

	// Машина должна принадлежать инициатору
	ownerID, err := s.store.VehicleOwner(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, database.ErrNotOwner
	}

	space, err := s.store.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	hours := BillableHours(start, end)
	if space.MaxDurationHours.Valid && int64(hours) > space.MaxDurationHours.Int64 {
		return nil, database.ErrTooLong
	}

	if err := s.checkSchedule(ctx, spaceID, start, end); err != nil {
		return nil, err
	}

	reservation := &models.Reservation{
		SpaceID:     spaceID,
		SlotOrdinal: slotOrdinal,
		VehicleID:   vehicleID,
		StartAt:     start,
		EndAt:       end,
		Status:      models.StatusProcessing,
		Fee:         CalculateFee(space.HourlyRate, start, end),
	}

	// Проверка доступности и вставка в одной транзакции
	if err := s.store.CreateReservationWithLock(ctx, reservation); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationCreated, reservation, userID)
	return reservation, nil
}

// Pay transitions a processing reservation to paid.
func (s *ReservationService) Pay(ctx context.Context, id, userID int64) error {
	reservation, err := s.authorize(ctx, id, userID)
	if err != nil {
		return err
	}
	if reservation.Status != models.StatusProcessing {
		return database.ErrNotPayable
	}

	if err := s.store.UpdateReservationStatusWithVersion(ctx, id, reservation.Version, models.StatusPaid); err != nil {
		return err
	}

	reservation.Status = models.StatusPaid
	s.publishEvent(events.EventReservationPaid, reservation, userID)
	return nil
}

// Cancel moves a processing or paid reservation to cancelled. No
// refunds here; refund policy lives outside this system.
func (s *ReservationService) Cancel(ctx context.Context, id, userID int64) error {
	reservation, err := s.authorize(ctx, id, userID)
	if err != nil {
		return err
	}
	switch reservation.Status {
	case models.StatusComplete:
		return database.ErrAlreadyCompleted
	case models.StatusCancelled:
		return database.ErrAlreadyCancelled
	}

	if err := s.store.UpdateReservationStatusWithVersion(ctx, id, reservation.Version, models.StatusCancelled); err != nil {
		return err
	}

	reservation.Status = models.StatusCancelled
	s.publishEvent(events.EventReservationCancelled, reservation, userID)
	return nil
}

// Complete closes a processing or paid reservation and frees the slot
// for walk-in use. Completing a cancelled reservation is rejected: the
// ledger would otherwise lose the cancellation.
func (s *ReservationService) Complete(ctx context.Context, id, userID int64) error {
	reservation, err := s.authorize(ctx, id, userID)
	if err != nil {
		return err
	}
	switch reservation.Status {
	case models.StatusComplete:
		return database.ErrAlreadyCompleted
	case models.StatusCancelled:
		return database.ErrAlreadyCancelled
	}

	if err := s.store.CompleteReservation(ctx, id, reservation.Version); err != nil {
		return err
	}

	reservation.Status = models.StatusComplete
	s.publishEvent(events.EventReservationCompleted, reservation, userID)
	return nil
}

// CheckExtension is a dry run: it reports whether the reservation
// could be extended to newEnd without touching anything. The actual
// extension is a separate re-booking.
func (s *ReservationService) CheckExtension(ctx context.Context, id, userID int64, newEnd time.Time) (bool, error) {
	reservation, err := s.authorize(ctx, id, userID)
	if err != nil {
		return false, err
	}
	if !newEnd.After(reservation.EndAt) {
		return false, database.ErrInvalidInterval
	}

	// Только дельта [end, newEnd) должна быть свободна
	return s.store.IsSlotAvailable(ctx, reservation.SpaceID, reservation.SlotOrdinal, reservation.EndAt, newEnd)
}

func (s *ReservationService) Get(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

func (s *ReservationService) UserReservations(ctx context.Context, ownerID int64) ([]*models.Reservation, error) {
	return s.store.UserReservations(ctx, ownerID)
}

// authorize loads the reservation and verifies the requesting user owns
// the reservation's vehicle.
func (s *ReservationService) authorize(ctx context.Context, id, userID int64) (*models.Reservation, error) {
	reservation, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	ownerID, err := s.store.VehicleOwner(ctx, reservation.VehicleID)
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, database.ErrNotOwner
	}
	return reservation, nil
}

// checkSchedule rejects intervals that leave the space's operating
// hours. Every calendar day the interval touches must cover its
// portion: the first day from the start, the last day up to the end,
// days in between around the clock. An interval ending exactly at
// midnight belongs to the previous day.
func (s *ReservationService) checkSchedule(ctx context.Context, spaceID string, start, end time.Time) error {
	startDay := dayOf(start)
	endDay := dayOf(end)
	endMinute := end.Hour()*60 + end.Minute()
	if endMinute == 0 {
		endDay = endDay.AddDate(0, 0, -1)
		endMinute = 24 * 60
	}

	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		open, closeMinute, _, err := s.store.OperatingWindow(ctx, spaceID, int(day.Weekday()))
		if err != nil {
			return err
		}

		from := 0
		if day.Equal(startDay) {
			from = start.Hour()*60 + start.Minute()
		}
		to := 24 * 60
		if day.Equal(endDay) {
			to = endMinute
		}
		if from < open || to > closeMinute {
			return database.ErrOutsideHours
		}
	}
	return nil
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (s *ReservationService) publishEvent(eventType string, r *models.Reservation, actorID int64) {
	if s.bus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		SpaceID:       r.SpaceID,
		SlotOrdinal:   r.SlotOrdinal,
		VehicleID:     r.VehicleID,
		Status:        r.Status,
		Fee:           r.Fee,
		StartAt:       r.StartAt,
		EndAt:         r.EndAt,
		ActorID:       actorID,
	}

	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}
