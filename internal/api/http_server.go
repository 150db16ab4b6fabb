package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parkmarket/internal/config"
	"parkmarket/internal/domain"
	"parkmarket/internal/metrics"
	"parkmarket/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the marketplace over a JSON HTTP API.
type HTTPServer struct {
	cfg          config.APIConfig
	spaces       *service.SpaceService
	reservations *service.ReservationService
	server       *http.Server
	auth         *HTTPAuth
	logger       zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, spaces *service.SpaceService, reservations *service.ReservationService, cache domain.CacheRepository, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:          cfg,
		spaces:       spaces,
		reservations: reservations,
		auth:         NewHTTPAuth(cfg, cache),
		logger:       logger.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/spaces", srv.handleSpaces)
	mux.HandleFunc("/api/v1/spaces/", srv.handleSpaceSubresource)
	mux.HandleFunc("/api/v1/availability/", srv.handleAvailability)
	mux.HandleFunc("/api/v1/reservations", srv.handleReservations)
	mux.HandleFunc("/api/v1/reservations/", srv.handleReservationAction)
	mux.HandleFunc("/api/v1/slots/", srv.handleSlot)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		metrics.IncHTTP(routeLabel(r.URL.Path), statusClass(recorder.status))

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// routeLabel collapses paths with embedded identifiers so the metric
// cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/availability/"):
		return "/api/v1/availability"
	case strings.HasPrefix(path, "/api/v1/spaces/"):
		return "/api/v1/spaces"
	case strings.HasPrefix(path, "/api/v1/reservations/"):
		return "/api/v1/reservations"
	case strings.HasPrefix(path, "/api/v1/slots/"):
		return "/api/v1/slots"
	}
	return path
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
