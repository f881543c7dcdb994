package openai

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// newLimiter returns a limiter for rps requests per second, or nil when
// rps is zero.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(1, int(math.Ceil(rps))))
}

// wait blocks until the limiter admits a request or ctx is done.
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
