package interceptors

import (
	"sync"
	"time"

	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitConfig defines configuration for rate limiting a pipeline.
type RateLimitConfig[S any] struct {
	// Unique identifier for this rate limit bucket. Pipelines sharing the
	// same BucketName share the same rate limit.
	BucketName string

	// Maximum number of executions allowed in the time window.
	Limit int

	// Time window for the rate limit (e.g., 1 minute, 1 hour).
	Window time.Duration

	// KeyExtractor derives the per-client key from the subject (e.g. the
	// client IP of a server call, or the host of an outgoing request).
	KeyExtractor func(S) (string, error)

	// OnExceeded, if set, is invoked when the limit is exceeded with the
	// subject and the time until the bucket resets; the execution then
	// finishes early instead of failing. If nil, the execution fails with
	// ErrRateLimited.
	OnExceeded func(subject S, retryAfter time.Duration)
}

// RateLimiter defines the interface for rate limiting algorithms.
type RateLimiter interface {
	// Allow checks whether an execution identified by key is allowed under
	// the given limit and window. It returns whether the execution may
	// proceed, the number of remaining slots, and the time until reset.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// UberRateLimiter implements RateLimiter using Uber's leaky-bucket ratelimit
// library, combined with a per-window counter so that limits are enforced
// strictly within each window.
type UberRateLimiter struct {
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
	windows  sync.Map // map[string]*rateWindow
}

// rateWindow is the strict per-window counter for one bucket key.
type rateWindow struct {
	mu    sync.Mutex
	start time.Time
	count int
}

// NewUberRateLimiter creates a new rate limiter backed by Uber's ratelimit
// library.
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{}
}

// getLimiter gets or creates a leaky-bucket limiter for the given key and
// rate.
func (u *UberRateLimiter) getLimiter(key string, rps int) ratelimit.Limiter {
	if limiter, ok := u.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	// Double-check after acquiring lock
	if limiter, ok := u.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	limiter := ratelimit.New(rps)
	u.limiters.Store(key, limiter)
	return limiter
}

// Allow checks whether an execution identified by key is allowed under the
// given limit and window.
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	effectiveWindow := window
	if effectiveWindow <= 0 {
		effectiveWindow = time.Second
	}
	effectiveLimit := limit
	if effectiveLimit <= 0 {
		effectiveLimit = 1
	}

	// Smooth bursts through the leaky bucket.
	rps := int(float64(effectiveLimit) / effectiveWindow.Seconds())
	if rps < 1 {
		rps = 1
	}
	u.getLimiter(key, rps).Take()

	wAny, _ := u.windows.LoadOrStore(key, &rateWindow{start: time.Now()})
	w := wAny.(*rateWindow)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if now.Sub(w.start) > effectiveWindow {
		w.start = now
		w.count = 0
	}

	w.count++
	if w.count > effectiveLimit {
		return false, 0, effectiveWindow - now.Sub(w.start)
	}

	remaining := effectiveLimit - w.count
	return true, remaining, effectiveWindow - now.Sub(w.start)
}

// RateLimit returns a step that enforces the configured rate limit on every
// execution of the pipeline it is registered in.
func RateLimit[S any](config *RateLimitConfig[S], limiter RateLimiter, logger *zap.Logger) pipeline.Step[S] {
	return func(c *pipeline.Context[S], subject S) error {
		if config == nil {
			return nil
		}

		var key string
		if config.KeyExtractor != nil {
			var err error
			key, err = config.KeyExtractor(subject)
			if err != nil {
				logger.Error("Failed to extract rate limit key", zap.Error(err))
				return err
			}
		}

		bucketKey := config.BucketName + ":" + key
		allowed, remaining, reset := limiter.Allow(bucketKey, config.Limit, config.Window)
		if allowed {
			return nil
		}

		logger.Warn("Rate limit exceeded",
			zap.String("bucket", config.BucketName),
			zap.String("key", key),
			zap.Int("limit", config.Limit),
			zap.Int("remaining", remaining),
		)

		if config.OnExceeded != nil {
			config.OnExceeded(subject, reset)
			c.Finish()
			return nil
		}
		return ErrRateLimited
	}
}
