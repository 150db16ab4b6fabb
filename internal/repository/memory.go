package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"parkmarket/internal/models"
)

type MemoryCacheRepository struct {
	calendars  sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryCacheRepository(ttl time.Duration) *MemoryCacheRepository {
	return &MemoryCacheRepository{
		ttl: ttl,
	}
}

type calendarEntry struct {
	calendar  []models.CalendarDay
	expiresAt time.Time
}

func calendarKey(spaceID string, ordinal int, from string, days int) string {
	return fmt.Sprintf("calendar:%s:%d:%s:%d", spaceID, ordinal, from, days)
}

func slotPrefix(spaceID string, ordinal int) string {
	return fmt.Sprintf("calendar:%s:%d:", spaceID, ordinal)
}

func spacePrefix(spaceID string) string {
	return fmt.Sprintf("calendar:%s:", spaceID)
}

func (r *MemoryCacheRepository) GetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int) ([]models.CalendarDay, error) {
	val, ok := r.calendars.Load(calendarKey(spaceID, ordinal, from, days))
	if !ok {
		return nil, nil
	}
	entry := val.(*calendarEntry)
	if time.Now().After(entry.expiresAt) {
		r.calendars.Delete(calendarKey(spaceID, ordinal, from, days))
		return nil, nil
	}
	return entry.calendar, nil
}

func (r *MemoryCacheRepository) SetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int, calendar []models.CalendarDay) error {
	r.calendars.Store(calendarKey(spaceID, ordinal, from, days), &calendarEntry{
		calendar:  calendar,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryCacheRepository) InvalidateSlot(ctx context.Context, spaceID string, ordinal int) error {
	return r.deletePrefix(slotPrefix(spaceID, ordinal))
}

func (r *MemoryCacheRepository) InvalidateSpace(ctx context.Context, spaceID string) error {
	return r.deletePrefix(spacePrefix(spaceID))
}

func (r *MemoryCacheRepository) deletePrefix(prefix string) error {
	r.calendars.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			r.calendars.Delete(key)
		}
		return true
	})
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
