package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parkmarket/internal/config"
	"parkmarket/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisCacheRepository(client *redis.Client, ttl time.Duration) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisCacheRepository) GetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int) ([]models.CalendarDay, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, calendarKey(spaceID, ordinal, from, days)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar from redis: %w", err)
	}

	var calendar []models.CalendarDay
	if err := json.Unmarshal([]byte(val), &calendar); err != nil {
		return nil, fmt.Errorf("failed to unmarshal calendar: %w", err)
	}

	return calendar, nil
}

func (r *RedisCacheRepository) SetCalendar(ctx context.Context, spaceID string, ordinal int, from string, days int, calendar []models.CalendarDay) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(calendar)
	if err != nil {
		return fmt.Errorf("failed to marshal calendar: %w", err)
	}

	if err := r.client.Set(ctx, calendarKey(spaceID, ordinal, from, days), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set calendar in redis: %w", err)
	}

	return nil
}

func (r *RedisCacheRepository) InvalidateSlot(ctx context.Context, spaceID string, ordinal int) error {
	return r.deletePattern(ctx, slotPrefix(spaceID, ordinal)+"*")
}

func (r *RedisCacheRepository) InvalidateSpace(ctx context.Context, spaceID string) error {
	return r.deletePattern(ctx, spacePrefix(spaceID)+"*")
}

func (r *RedisCacheRepository) deletePattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete calendar key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan calendar keys: %w", err)
	}
	return nil
}

func (r *RedisCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	rateKey := fmt.Sprintf("rate_limit:%s", key)
	count, err := r.client.Incr(ctx, rateKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, rateKey, window)
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
