package mcpclient

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter bounds the rate of tools/call invocations issued against one
// or more sources, one limiter per key (source kind). It blocks the
// caller until a token is available rather than rejecting outright, since
// callTool already has a request/response shape that tolerates waiting.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained
// throughput with the given burst, applied independently per key.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[key]
	r.mu.RUnlock()
	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if limiter, exists = r.limiters[key]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(r.rps, r.burst)
	r.limiters[key] = limiter
	return limiter
}

// Wait blocks until key's limiter admits one request or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	return r.getLimiter(key).Wait(ctx)
}
