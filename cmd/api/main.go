package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"parkmarket/internal/api"
	"parkmarket/internal/config"
	"parkmarket/internal/database"
	"parkmarket/internal/domain"
	"parkmarket/internal/events"
	"parkmarket/internal/logging"
	"parkmarket/internal/metrics"
	"parkmarket/internal/models"
	"parkmarket/internal/repository"
	"parkmarket/internal/service"
	"parkmarket/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/guregu/null.v4"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if err := applySeed(cfg, db, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := initCache(cfg, redisClient, &logger)

	eventBus := events.NewEventBus()
	subscribeReservationEvents(ctx, eventBus, cache, &logger)

	spaceService := service.NewSpaceService(db, cache, eventBus, &logger)
	reservationService := service.NewReservationService(db, eventBus, cfg.Booking.MaxAdvanceDays, &logger)

	if cfg.Booking.HoldTTLMinutes > 0 {
		sweeper := worker.NewExpirySweeper(db, eventBus,
			time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute,
			time.Duration(cfg.Booking.SweepIntervalSeconds)*time.Second,
			&logger)
		go sweeper.Start(ctx)
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, spaceService, reservationService, cache, &logger)
	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// Seed file shapes, configs/spaces.yaml.

type seedWindow struct {
	Weekday int    `yaml:"weekday"`
	Open    string `yaml:"open"`
	Close   string `yaml:"close"`
}

type seedSpace struct {
	ID               string       `yaml:"id"`
	Code             string       `yaml:"code"`
	Address          string       `yaml:"address"`
	HourlyRate       float64      `yaml:"hourly_rate"`
	Slots            int          `yaml:"slots"`
	MaxDurationHours *int64       `yaml:"max_duration_hours"`
	Description      string       `yaml:"description"`
	OwnerAdminID     int64        `yaml:"owner_admin_id"`
	Schedule         []seedWindow `yaml:"schedule"`
}

type seedVehicle struct {
	Plate       string `yaml:"plate"`
	OwnerID     int64  `yaml:"owner_id"`
	Description string `yaml:"description"`
}

type seedFile struct {
	Spaces   []seedSpace   `yaml:"spaces"`
	Vehicles []seedVehicle `yaml:"vehicles"`
}

// applySeed upserts the configured spaces, slots, schedules and
// vehicles. Existing reservations are never touched, so re-running the
// seed on deploy is safe.
func applySeed(cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	seedPath := cfg.Seed.Path
	if env := os.Getenv("SEED_PATH"); env != "" {
		seedPath = env
	}
	if seedPath == "" {
		seedPath = "configs/spaces.yaml"
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("seed_path", seedPath).Msg("seed file missing, starting with an empty registry")
			return nil
		}
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read seed")
		return err
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("parse seed")
		return err
	}

	ctx := context.Background()
	for _, s := range seed.Spaces {
		space := &models.ParkingSpace{
			ID:               s.ID,
			Code:             s.Code,
			Address:          s.Address,
			HourlyRate:       s.HourlyRate,
			MaxDurationHours: null.IntFromPtr(s.MaxDurationHours),
			Description:      s.Description,
			OwnerAdminID:     s.OwnerAdminID,
		}
		if err := db.UpsertSpace(ctx, space); err != nil {
			return err
		}
		if err := db.EnsureSlots(ctx, s.ID, s.Slots); err != nil {
			return err
		}
		for _, w := range s.Schedule {
			open, err := parseClock(w.Open)
			if err != nil {
				return fmt.Errorf("space %s weekday %d: %w", s.ID, w.Weekday, err)
			}
			closeMin, err := parseClock(w.Close)
			if err != nil {
				return fmt.Errorf("space %s weekday %d: %w", s.ID, w.Weekday, err)
			}
			window := &models.ScheduleWindow{SpaceID: s.ID, Weekday: w.Weekday, Open: open, Close: closeMin}
			if err := db.UpsertScheduleWindow(ctx, window); err != nil {
				return err
			}
		}
	}

	for _, v := range seed.Vehicles {
		vehicle := &models.Vehicle{Plate: v.Plate, OwnerID: v.OwnerID, Description: v.Description}
		if err := db.UpsertVehicle(ctx, vehicle); err != nil {
			return err
		}
	}

	logger.Info().Int("spaces", len(seed.Spaces)).Int("vehicles", len(seed.Vehicles)).Msg("seed applied")
	return nil
}

// parseClock converts "HH:MM" to minutes since midnight. "24:00" is
// accepted as the end-of-day close.
func parseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil || mins < 0 || mins > 59 || (hours == 24 && mins != 0) {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	return hours*60 + mins, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.CacheRepository {
	ttl := time.Duration(cfg.Booking.CalendarTTLSeconds) * time.Second
	fallback := repository.NewMemoryCacheRepository(ttl)
	if redisClient == nil {
		return fallback
	}
	primary := repository.NewRedisCacheRepository(redisClient, ttl)
	return repository.NewFailoverCacheRepository(primary, fallback, logger)
}

// subscribeReservationEvents keeps the calendar cache and the metrics
// in step with the reservation lifecycle.
func subscribeReservationEvents(ctx context.Context, bus *events.EventBus, cache domain.CacheRepository, logger *zerolog.Logger) {
	handler := func(ev *events.Event) error {
		metrics.IncReservationEvent(ev.Type)

		var payload events.ReservationEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		if cache != nil {
			if err := cache.InvalidateSlot(ctx, payload.SpaceID, payload.SlotOrdinal); err != nil {
				logger.Warn().Err(err).
					Str("space_id", payload.SpaceID).
					Int("ordinal", payload.SlotOrdinal).
					Msg("event bus: calendar invalidation failed")
			}
		}
		return nil
	}

	bus.Subscribe(events.EventReservationCreated, handler)
	bus.Subscribe(events.EventReservationPaid, handler)
	bus.Subscribe(events.EventReservationCancelled, handler)
	bus.Subscribe(events.EventReservationCompleted, handler)
	bus.Subscribe(events.EventReservationExpired, handler)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}
