package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisTest(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestMemoryLimiter_Allow(t *testing.T) {
	limiter := NewMemoryLimiter(&RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute})
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, reset, err := limiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, reset)

	// A new window starts once the old one expires
	now = now.Add(time.Minute)
	allowed, _, _ = limiter.Allow(context.Background(), "k")
	assert.True(t, allowed)

	now = now.Add(2 * time.Minute)
	limiter.Cleanup()
	assert.Empty(t, limiter.windows)
}

func TestMemoryLimiter_SweepsWhenLarge(t *testing.T) {
	limiter := NewMemoryLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < sweepThreshold; i++ {
		_, _, err := limiter.Allow(context.Background(), fmt.Sprintf("ip:%d", i))
		require.NoError(t, err)
	}
	require.Len(t, limiter.windows, sweepThreshold)

	now = now.Add(2 * time.Minute)
	_, _, err := limiter.Allow(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Len(t, limiter.windows, 1)
}

func TestRedisLimiter_Allow(t *testing.T) {
	client, mr := setupRedisTest(t)
	limiter := NewRedisLimiter(client, &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "test")
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, _ = limiter.Allow(ctx, "ip:1.2.3.4")
	assert.True(t, allowed)

	allowed, reset, _ := limiter.Allow(ctx, "ip:1.2.3.4")
	assert.False(t, allowed)
	assert.True(t, reset > 0 && reset <= time.Minute)

	mr.FastForward(time.Minute + time.Second)
	allowed, _, _ = limiter.Allow(ctx, "ip:1.2.3.4")
	assert.True(t, allowed)
}

func TestRateLimitMiddleware_Handler(t *testing.T) {
	client, _ := setupRedisTest(t)
	mw := NewRateLimitMiddleware(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Different client is counted separately
	other := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	client, mr := setupRedisTest(t)
	mw := NewRateLimitMiddleware(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mr.Close()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.5:1234"
	assert.Equal(t, "192.168.1.5", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.1.1.1")
	assert.Equal(t, "10.1.1.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))
}
