package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
}

// DefaultRateLimitConfig returns the limits applied to credential endpoints
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 20,
		WindowDuration:    time.Minute,
	}
}

// Limiter counts requests per key within a fixed window
type Limiter interface {
	// Allow records a hit for key and reports whether it is within the limit
	// and how long until the window resets
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RedisLimiter implements fixed-window rate limiting in Redis so limits are
// shared across instances
type RedisLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewRedisLimiter creates a new Redis-backed rate limiter
func NewRedisLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *RedisLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow increments the counter for key
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, 0, fmt.Errorf("redis error: %w", err)
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return true, 0, fmt.Errorf("redis error: %w", err)
		}
	}

	ttl, err := rl.redis.TTL(ctx, redisKey).Result()
	if err != nil {
		return true, 0, fmt.Errorf("redis error: %w", err)
	}

	if ttl <= 0 {
		ttl = rl.config.WindowDuration
	}
	return count <= int64(rl.config.RequestsPerWindow), ttl, nil
}

// MemoryLimiter is the single-instance limiter used when Redis is not configured
type MemoryLimiter struct {
	config  *RateLimitConfig
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// sweepThreshold is the number of tracked clients above which Allow drops
// expired windows
const sweepThreshold = 1024

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryLimiter creates an in-process rate limiter
func NewMemoryLimiter(config *RateLimitConfig) *MemoryLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &MemoryLimiter{
		config:  config,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow increments the counter for key
func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.windows) >= sweepThreshold {
		rl.sweep(now)
	}
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rl.config.WindowDuration)}
		rl.windows[key] = w
	}
	w.count++

	return w.count <= rl.config.RequestsPerWindow, w.resetAt.Sub(now), nil
}

// Cleanup removes expired windows
func (rl *MemoryLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(rl.now())
}

// sweep drops expired windows; callers hold mu
func (rl *MemoryLimiter) sweep(now time.Time) {
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimitMiddleware limits requests per authenticated user or client IP
type RateLimitMiddleware struct {
	limiter Limiter
	limit   int
}

// NewRateLimitMiddleware creates a rate limit middleware. A nil redis client
// selects the in-memory limiter.
func NewRateLimitMiddleware(redisClient *redis.Client, config *RateLimitConfig) *RateLimitMiddleware {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	var limiter Limiter
	if redisClient != nil {
		limiter = NewRedisLimiter(redisClient, config, "sprintflow:ratelimit")
	} else {
		limiter = NewMemoryLimiter(config)
	}
	return &RateLimitMiddleware{limiter: limiter, limit: config.RequestsPerWindow}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + getClientIP(r)
		if p := GetPrincipal(r); p != nil {
			key = "user:" + p.UserID
		}

		allowed, reset, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			// Fail open so a Redis outage does not take down login
			observability.FromContext(r.Context()).WithError(err).Warn("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.limit))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(reset).Unix()))

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", reset.Seconds()))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
