package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/httputil"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// Requests is the max requests allowed in the window
	Requests int
	// Window is the fixed window length
	Window time.Duration
}

// SignInRateLimitConfig returns the default limit for authentication attempts
func SignInRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	}
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimiter is an in-process fixed-window limiter
type RateLimiter struct {
	config  RateLimitConfig
	windows map[string]*window
	mu      sync.Mutex
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.Requests <= 0 || config.Window <= 0 {
		config = SignInRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records one request for key
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rl.config.Window)}
		rl.windows[key] = w
	}
	w.count++

	return Decision{
		Allowed:   w.count <= rl.config.Requests,
		Limit:     rl.config.Requests,
		Remaining: max(rl.config.Requests-w.count, 0),
		ResetAt:   w.resetAt,
	}, nil
}

// Cleanup removes expired windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimitMiddleware limits requests per client IP
type RateLimitMiddleware struct {
	limiter  Limiter
	logger   logrus.FieldLogger
	failOpen bool
	onLimit  func(r *http.Request, key string)
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter, logger logrus.FieldLogger) *RateLimitMiddleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RateLimitMiddleware{
		limiter:  limiter,
		logger:   logger,
		failOpen: true,
	}
}

// SetFailOpen controls whether limiter errors let the request through (true) or return 503
func (m *RateLimitMiddleware) SetFailOpen(failOpen bool) {
	m.failOpen = failOpen
}

// OnLimit registers a callback invoked for every rejected request
func (m *RateLimitMiddleware) OnLimit(fn func(r *http.Request, key string)) *RateLimitMiddleware {
	m.onLimit = fn
	return m
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + httputil.ClientIP(r)

		decision, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.WithError(err).WithField("key", key).Warn("Rate limiter unavailable")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteServiceUnavailable(w, "Service temporarily unavailable")
			return
		}

		setRateLimitHeaders(w, decision)
		if !decision.Allowed {
			if m.onLimit != nil {
				m.onLimit(r, key)
			}
			rateLimitExceeded(w, decision)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
	if !d.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", d.ResetAt.Unix()))
	}
}

func rateLimitExceeded(w http.ResponseWriter, d Decision) {
	retryAfter := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": retryAfter,
	})
}
