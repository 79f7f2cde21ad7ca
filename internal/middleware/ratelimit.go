package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"autoparts/internal/cache"
	apperrors "autoparts/internal/errors"
	"autoparts/internal/logger"
)

// bucket tracks a fixed-window request count for one client.
type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimitStore counts requests per client in fixed windows. Counters live in
// Redis so every instance shares them; when Redis is unreachable the store
// counts in process instead.
type RateLimitStore struct {
	cache  *cache.Client
	max    int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	nextSweep time.Time
}

const (
	defaultRateLimitMax    = 100
	defaultRateLimitWindow = 15 * time.Minute
)

// NewRateLimitStore allows max requests per window for each identifier.
// Non-positive values fall back to 100 requests per 15 minutes.
func NewRateLimitStore(c *cache.Client, max int, window time.Duration) *RateLimitStore {
	if max <= 0 {
		max = defaultRateLimitMax
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimitStore{
		cache:   c,
		max:     max,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow implements middleware.RateLimiterStore.
func (s *RateLimitStore) Allow(identifier string) (bool, error) {
	now := s.now()
	if s.cache.Enabled() {
		slot := now.UnixNano() / int64(s.window)
		key := fmt.Sprintf("ratelimit:%s:%d", identifier, slot)

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		n, err := s.cache.Incr(ctx, key, s.window)
		cancel()
		if err == nil {
			return n <= int64(s.max), nil
		}
		logger.L.Debug("rate limit falling back to memory", "error", err)
	}
	return s.allowLocal(identifier, now), nil
}

func (s *RateLimitStore) allowLocal(identifier string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.nextSweep) {
		for id, b := range s.buckets {
			if now.After(b.resetAt) {
				delete(s.buckets, id)
			}
		}
		s.nextSweep = now.Add(s.window)
	}

	b, ok := s.buckets[identifier]
	if !ok || now.After(b.resetAt) {
		b = &bucket{resetAt: now.Add(s.window)}
		s.buckets[identifier] = b
	}
	b.count++
	return b.count <= s.max
}

// RateLimit limits each client IP using store.
func RateLimit(store echomw.RateLimiterStore) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, apperrors.ErrorResponse{
				Error: "unable to identify client",
				Code:  "FORBIDDEN",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: "too many requests, please try again later",
				Code:  "RATE_LIMITED",
			})
		},
	})
}
