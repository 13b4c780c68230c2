package webhooks

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter bounds deliveries per webhook with a token bucket each
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows maxRequests per period to each webhook
func NewRateLimiter(maxRequests int, period time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(period / time.Duration(maxRequests)),
		burst:    maxRequests,
	}
}

// Allow takes a token for webhookID if one is available
func (rl *RateLimiter) Allow(webhookID string) bool {
	return rl.limiter(webhookID).Allow()
}

// Remaining returns the whole tokens left for webhookID
func (rl *RateLimiter) Remaining(webhookID string) int {
	return int(rl.limiter(webhookID).Tokens())
}

// Reset forgets the bucket of a webhook
func (rl *RateLimiter) Reset(webhookID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, webhookID)
}

func (rl *RateLimiter) limiter(webhookID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[webhookID]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[webhookID] = l
	}
	return l
}
