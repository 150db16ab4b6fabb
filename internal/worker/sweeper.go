package worker

import (
	"context"
	"errors"
	"time"

	"parkmarket/internal/database"
	"parkmarket/internal/domain"
	"parkmarket/internal/events"
	"parkmarket/internal/metrics"
	"parkmarket/internal/models"

	"github.com/rs/zerolog"
)

// ExpirySweeper cancels processing reservations whose payment hold has
// run out, releasing the interval back to the market. Only the sweeper
// expires holds; the read path never mutates state.
type ExpirySweeper struct {
	store    domain.Store
	bus      domain.EventPublisher
	holdTTL  time.Duration
	interval time.Duration
	retry    RetryPolicy
	logger   zerolog.Logger
}

func NewExpirySweeper(store domain.Store, bus domain.EventPublisher, holdTTL, interval time.Duration, logger *zerolog.Logger) *ExpirySweeper {
	if holdTTL <= 0 {
		holdTTL = time.Duration(models.DefaultHoldTTLMinutes) * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		store:    store,
		bus:      bus,
		holdTTL:  holdTTL,
		interval: interval,
		retry:    defaultRetryPolicy(),
		logger: logger.With().Str("component", "expiry_sweeper").Logger(),
	}
}

// Start runs the sweep loop until ctx is done.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("hold_ttl", s.holdTTL).Dur("interval", s.interval).Msg("Expiry sweeper started")
	defer s.logger.Info().Msg("Expiry sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Sweep failed")
			} else if n > 0 {
				s.logger.Info().Int("expired", n).Msg("Expired stale holds")
			}
		}
	}
}

// Sweep cancels all processing reservations created before now-holdTTL
// and returns how many it expired. Rows that changed under the sweeper
// are skipped; the owner's transition won.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.loadStale(ctx, time.Now().Add(-s.holdTTL))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, r := range stale {
		err := s.store.UpdateReservationStatusWithVersion(ctx, r.ID, r.Version, models.StatusCancelled)
		if err != nil {
			if errors.Is(err, database.ErrConcurrentModification) || errors.Is(err, database.ErrReservationNotFound) {
				continue
			}
			s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("Failed to expire hold")
			continue
		}

		expired++
		metrics.IncExpiredHold()

		if s.bus != nil {
			payload := events.ReservationEventPayload{
				ReservationID: r.ID,
				SpaceID:       r.SpaceID,
				SlotOrdinal:   r.SlotOrdinal,
				VehicleID:     r.VehicleID,
				Status:        models.StatusCancelled,
				Fee:           r.Fee,
				StartAt:       r.StartAt,
				EndAt:         r.EndAt,
			}
			if err := s.bus.PublishJSON(events.EventReservationExpired, payload); err != nil {
				s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("publish event error")
			}
		}
	}
	return expired, nil
}

// loadStale retries transient read failures with backoff so one flaky
// query does not skip a whole sweep cycle.
func (s *ExpirySweeper) loadStale(ctx context.Context, cutoff time.Time) ([]*models.Reservation, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxRetries; attempt++ {
		stale, err := s.store.StaleProcessing(ctx, cutoff)
		if err == nil {
			return stale, nil
		}
		lastErr = err
		if attempt < s.retry.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retry.NextDelay(attempt)):
			}
		}
	}
	return nil, lastErr
}
