package http

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimitResponse is the body of a 429 answer.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	RetryAfter string `json:"retry_after"`
}

// limiterStore keeps one token bucket per client, evicting the least recently
// seen client once maxClients is reached.
type limiterStore struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newLimiterStore(perMinute, maxClients int) (*limiterStore, error) {
	cache, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter cache: %w", err)
	}
	return &limiterStore{
		limiters: cache,
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
	}, nil
}

// Allow implements middleware.RateLimiterStore.
func (s *limiterStore) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	limiter, ok := s.limiters.Get(identifier)
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters.Add(identifier, limiter)
	}
	s.mu.Unlock()
	return limiter.Allow(), nil
}

// RateLimit allows perMinute requests per client IP. A non-positive limit disables it.
func RateLimit(perMinute, maxClients int) (echo.MiddlewareFunc, error) {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }, nil
	}
	store, err := newLimiterStore(perMinute, maxClients)
	if err != nil {
		return nil, err
	}

	retryAfterSeconds := strconv.Itoa((60 + perMinute - 1) / perMinute)
	deny := RateLimitResponse{
		Error:      "Rate limit exceeded",
		Detail:     fmt.Sprintf("%d per 1 minute", perMinute),
		RetryAfter: "1 minute",
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set("Retry-After", retryAfterSeconds)
			return c.JSON(http.StatusTooManyRequests, deny)
		},
	}), nil
}
