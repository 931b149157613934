package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Quota is a long-window request budget checked before the token bucket.
// GitHub enforces an hourly primary limit independent of the per-second
// pacing the Limiter provides.
type Quota struct {
	hourly *rate.Limiter
}

// NewQuota returns nil when reqPerHour is not positive; a nil Quota never blocks.
func NewQuota(reqPerHour int) *Quota {
	if reqPerHour <= 0 {
		return nil
	}
	return &Quota{
		hourly: rate.NewLimiter(rate.Limit(float64(reqPerHour)/3600.0), reqPerHour),
	}
}

func (q *Quota) Wait(ctx context.Context) error {
	if q == nil {
		return nil
	}
	return q.hourly.Wait(ctx)
}

// Remaining reports the whole requests currently left in the budget.
func (q *Quota) Remaining() int {
	if q == nil {
		return -1
	}
	return int(q.hourly.Tokens())
}
