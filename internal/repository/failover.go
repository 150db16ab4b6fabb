package repository

import (
	"context"
	"sync/atomic"
	"time"

	"parkmarket/internal/domain"
	"parkmarket/internal/models"

	"github.com/rs/zerolog"
)

// FailoverCacheRepository serves from primary (Redis) until it errors,
// then degrades to the in-memory fallback and retries primary after a
// minute. Losing the cache only costs extra ledger reads.
type FailoverCacheRepository struct {
	primary   domain.CacheRepository
	fallback  domain.CacheRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverCacheRepository(primary, fallback domain.CacheRepository, logger *zerolog.Logger) *FailoverCacheRepository {
	return &FailoverCacheRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCacheRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary cache repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverCacheRepository) GetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int) ([]models.CalendarDay, error) {
	if !r.isDown.Load() {
		calendar, err := r.primary.GetCalendar(ctx, spaceID, ordinal, from, days)
		if err == nil {
			return calendar, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		calendar, err := r.primary.GetCalendar(ctx, spaceID, ordinal, from, days)
		if err == nil {
			r.isDown.Store(false)
			return calendar, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetCalendar(ctx, spaceID, ordinal, from, days)
}

func (r *FailoverCacheRepository) SetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int, calendar []models.CalendarDay) error {
	if !r.isDown.Load() {
		err := r.primary.SetCalendar(ctx, spaceID, ordinal, from, days, calendar)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetCalendar(ctx, spaceID, ordinal, from, days, calendar)
}

func (r *FailoverCacheRepository) InvalidateSlot(ctx context.Context, spaceID string, ordinal int) error {
	// Invalidation must reach both sides: stale fallback entries would
	// survive a primary-only delete.
	perr := r.primary.InvalidateSlot(ctx, spaceID, ordinal)
	if perr != nil && !r.isDown.Load() {
		r.markDown(perr)
	}
	if err := r.fallback.InvalidateSlot(ctx, spaceID, ordinal); err != nil {
		return err
	}
	if r.isDown.Load() {
		return nil
	}
	return perr
}

func (r *FailoverCacheRepository) InvalidateSpace(ctx context.Context, spaceID string) error {
	perr := r.primary.InvalidateSpace(ctx, spaceID)
	if perr != nil && !r.isDown.Load() {
		r.markDown(perr)
	}
	if err := r.fallback.InvalidateSpace(ctx, spaceID); err != nil {
		return err
	}
	if r.isDown.Load() {
		return nil
	}
	return perr
}

func (r *FailoverCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
