package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/nichefinder/internal/common"
)

// RateLimiter enforces a minimum delay between requests to one domain.
type RateLimiter struct {
	limiters     map[string]*domainLimiter
	mu           sync.RWMutex
	defaultDelay time.Duration
}

// domainLimiter tracks the last request time for a single domain
type domainLimiter struct {
	lastRequest time.Time
	mu          sync.Mutex
	delay       time.Duration
}

// NewRateLimiter creates a new rate limiter with the specified default delay
func NewRateLimiter(defaultDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters:     make(map[string]*domainLimiter),
		defaultDelay: defaultDelay,
	}
}

// Wait blocks until the rate limit for the URL's domain is satisfied.
func (rl *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	domain := common.URLDomain(rawURL)
	if domain == "" {
		return nil
	}

	rl.mu.Lock()
	limiter, exists := rl.limiters[domain]
	if !exists {
		limiter = &domainLimiter{delay: rl.defaultDelay}
		rl.limiters[domain] = limiter
	}
	rl.mu.Unlock()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := time.Now()
	nextAllowed := limiter.lastRequest.Add(limiter.delay)

	if now.Before(nextAllowed) {
		timer := time.NewTimer(nextAllowed.Sub(now))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	limiter.lastRequest = time.Now()
	return nil
}
