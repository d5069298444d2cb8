package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/hupe1980/magentic/model"
)

// rateLimited blocks each Generate call until the token bucket admits it.
type rateLimited struct {
	base
	limiter *rate.Limiter
}

// RateLimit returns a middleware admitting at most requestsPerMinute
// generate calls per minute with the given burst. The limiter is shared by
// every model wrapped with the returned middleware, so one instance can
// guard a whole provider account.
func RateLimit(requestsPerMinute float64, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), burst)
	return WithLimiter(limiter)
}

// WithLimiter wraps models with an existing limiter.
func WithLimiter(limiter *rate.Limiter) Middleware {
	return func(next model.Model) model.Model {
		if next == nil {
			return nil
		}
		return &rateLimited{base: base{next: next}, limiter: limiter}
	}
}

func (r *rateLimited) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return failed(fmt.Errorf("rate limit: %w", err))
	}
	return r.next.Generate(ctx, req)
}
