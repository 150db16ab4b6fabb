package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"parkmarket/internal/config"
	"parkmarket/internal/domain"

	"golang.org/x/time/rate"
)

const (
	apiKeyHeaderDefault = "x-api-key"

	permReadAvailability  = "read:availability"
	permReadSpaces        = "read:spaces"
	permWriteReservations = "write:reservations"
	permAdminSlots        = "admin:slots"

	clientKeyUnknown   = "unknown"
	rateLimitKeyPrefix = "ratelimit:http:"
)

var errPermissionDenied = fmt.Errorf("permission denied")

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP
// endpoints. With a cache repository the limit is a shared counter, so
// it spans instances and survives restarts; without one each process
// keeps its own token buckets.
type HTTPAuth struct {
	cfg      config.APIConfig
	cache    domain.CacheRepository
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig, cache domain.CacheRepository) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, cache: cache, clients: m}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if err == errPermissionDenied {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) headerName() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if h == "" {
		h = apiKeyHeaderDefault
	}
	return h
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.headerName()))
	if apiKey == "" {
		return fmt.Errorf("missing api key header")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return fmt.Errorf("invalid api key")
	}

	return a.checkPermissions(client, r)
}

func (a *HTTPAuth) checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermissionHTTP(r)
	if required == "" {
		return nil
	}
	// If permissions list is empty, treat as allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/availability"):
		return permReadAvailability
	case strings.HasPrefix(path, "/api/v1/spaces"):
		// Slot addition is an admin mutation, reads stay read-only
		if r.Method != http.MethodGet {
			return permAdminSlots
		}
		return permReadSpaces
	case strings.HasPrefix(path, "/api/v1/reservations"):
		return permWriteReservations
	case strings.HasPrefix(path, "/api/v1/slots"):
		return permAdminSlots
	}
	return ""
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	key := a.clientKey(r)

	// Prefer the shared counter. A failing cache degrades to the
	// local limiter instead of letting requests through unmetered.
	if a.cache != nil {
		limit := int(math.Ceil(a.cfg.RateLimit.RPS)) + a.burst()
		allowed, err := a.cache.CheckRateLimit(r.Context(), rateLimitKeyPrefix+key, limit, time.Second)
		if err == nil {
			if !allowed {
				return fmt.Errorf("rate limit exceeded")
			}
			return nil
		}
	}

	if !a.getLimiter(key).Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.headerName())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (a *HTTPAuth) burst() int {
	if a.cfg.RateLimit.Burst > 0 {
		return a.cfg.RateLimit.Burst
	}
	return 5
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), a.burst())
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}
