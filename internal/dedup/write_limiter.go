package dedup

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// WriteLimiter paces batch writes per scope so a large run does not
// saturate the store.
type WriteLimiter struct {
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	mu       sync.RWMutex
}

// NewWriteLimiter creates a limiter allowing writesPerSecond batch writes per
// scope. A non-positive rate disables pacing.
func NewWriteLimiter(writesPerSecond float64) *WriteLimiter {
	if writesPerSecond <= 0 {
		return &WriteLimiter{limit: rate.Inf}
	}

	burst := int(writesPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &WriteLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(writesPerSecond),
		burst:    burst,
	}
}

// Wait blocks until the scope may write another batch.
func (wl *WriteLimiter) Wait(ctx context.Context, scope string) error {
	if wl == nil || wl.limit == rate.Inf {
		return ctx.Err()
	}
	return wl.limiterFor(scope).Wait(ctx)
}

// limiterFor gets or creates the limiter of a scope
func (wl *WriteLimiter) limiterFor(scope string) *rate.Limiter {
	wl.mu.RLock()
	limiter, exists := wl.limiters[scope]
	wl.mu.RUnlock()

	if exists {
		return limiter
	}

	wl.mu.Lock()
	defer wl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := wl.limiters[scope]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(wl.limit, wl.burst)
	wl.limiters[scope] = limiter
	return limiter
}

// Forget drops the limiter of a finished scope.
func (wl *WriteLimiter) Forget(scope string) {
	if wl == nil || wl.limiters == nil {
		return
	}

	wl.mu.Lock()
	defer wl.mu.Unlock()

	delete(wl.limiters, scope)
}
