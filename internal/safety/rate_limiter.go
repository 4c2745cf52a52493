package safety

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket guarding venue API calls. It is safe
// for concurrent use; the live bot's HTTP servers and trading loop
// share one limiter per client.
type RateLimiter struct {
	mu         sync.Mutex
	name       string
	capacity   int
	tokens     int
	refillRate int // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a full bucket with the given capacity and
// refill rate per second.
func NewRateLimiter(name string, capacity, refillRate int) *RateLimiter {
	if capacity <= 0 {
		capacity = 10
	}
	if refillRate <= 0 {
		refillRate = capacity
	}
	return &RateLimiter{
		name:       name,
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

// Wait blocks until a token is available or the context is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.nextTokenIn()):
		}
	}
}

// Tokens reports how many tokens are currently available.
func (rl *RateLimiter) Tokens() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	return rl.tokens
}

func (rl *RateLimiter) refill() {
	elapsed := time.Since(rl.lastRefill)
	if elapsed < time.Second {
		return
	}

	added := int(elapsed.Seconds()) * rl.refillRate
	if added <= 0 {
		return
	}
	rl.tokens += added
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = time.Now()
}

func (rl *RateLimiter) nextTokenIn() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens > 0 {
		return 0
	}
	// A whole second may need to elapse before refill adds anything;
	// the extra margin covers timer precision.
	return time.Second/time.Duration(rl.refillRate) + 100*time.Millisecond
}
