package server

import (
	"sync"
	"time"

	"github.com/adminstyler/adminstyler/internal/logging"
)

// RateLimitConfig tunes the per-client token buckets
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	BurstSize         int
}

// RateLimiter implements per-client token bucket rate limiting. Buckets
// idle past the expiry window are swept by a background cleaner.
type RateLimiter struct {
	config  RateLimitConfig
	buckets map[string]*tokenBucket
	mutex   sync.Mutex
	logger  logging.Logger

	cleaner  *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

type tokenBucket struct {
	tokens     int
	capacity   int
	refillRate int // tokens per minute
	lastRefill time.Time
	lastAccess time.Time
}

const bucketExpiry = 10 * time.Minute

// NewRateLimiter creates a rate limiter and starts its bucket cleaner
func NewRateLimiter(config RateLimitConfig, logger logging.Logger) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 300
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 30
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
		logger:  logger.WithComponent("ratelimit"),
		cleaner: time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}

	go rl.sweepLoop()
	return rl
}

// Allow reports whether the client identified by key may proceed
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.config.Enabled {
		return true
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = &tokenBucket{
			tokens:     rl.config.BurstSize,
			capacity:   rl.config.BurstSize,
			refillRate: rl.config.RequestsPerMinute,
			lastRefill: now,
		}
		rl.buckets[key] = bucket
	}

	bucket.lastAccess = now
	bucket.refill(now)

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// refill adds tokens based on elapsed time, at most once a second
func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed < time.Second {
		return
	}

	tokensToAdd := int(elapsed.Minutes() * float64(tb.refillRate))
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
}

// Stop halts the background cleaner
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
}

func (rl *RateLimiter) sweepLoop() {
	for {
		select {
		case <-rl.cleaner.C:
			rl.sweep()
		case <-rl.done:
			rl.cleaner.Stop()
			return
		}
	}
}

// sweep removes buckets that have gone idle
func (rl *RateLimiter) sweep() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.lastAccess) > bucketExpiry {
			delete(rl.buckets, key)
		}
	}
}
