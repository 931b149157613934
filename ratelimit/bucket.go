package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/semaphore"
)

var validate = validator.New()

// Config describes the two capacity constraints of a remote service: a request
// rate and a cap on simultaneous in-flight requests. Zero values of the
// optional fields mean "not configured".
type Config struct {
	RequestsPerPeriod int           `validate:"gt=0"`
	Period            time.Duration `validate:"gt=0"`

	// ConcurrencyLimit caps callers holding a slot at once.
	ConcurrencyLimit int `validate:"gte=0"`
	// MaxTokensMultiplier lets idle time accumulate up to N periods worth of tokens.
	MaxTokensMultiplier int `validate:"gte=0"`
	// MinSleepTime caps a single wait inside the refill loop and bounds the
	// contention jitter.
	MinSleepTime time.Duration `validate:"gte=0"`
}

// Limiter is a token bucket with lazy refill combined with a concurrency gate.
// Refill, check and decrement happen under one mutex so the balance never goes
// negative; sleeping happens outside it.
type Limiter struct {
	cfg       Config
	maxTokens float64

	slots *semaphore.Weighted
	inUse atomic.Int64

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
}

// New validates cfg and returns a Limiter whose bucket starts full at
// RequestsPerPeriod tokens.
func New(cfg Config) (*Limiter, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	maxTokens := float64(cfg.RequestsPerPeriod)
	if cfg.MaxTokensMultiplier > 0 {
		maxTokens = float64(cfg.MaxTokensMultiplier * cfg.RequestsPerPeriod)
	}

	l := &Limiter{
		cfg:       cfg,
		maxTokens: maxTokens,
		tokens:    float64(cfg.RequestsPerPeriod),
		now:       time.Now,
		sleep:     sleepContext,
		jitter:    randomJitter,
	}
	if cfg.ConcurrencyLimit > 0 {
		l.slots = semaphore.NewWeighted(int64(cfg.ConcurrencyLimit))
	}
	l.lastRefill = l.now()
	return l, nil
}

// Acquire blocks until a concurrency slot and a token are both held. The
// returned release frees the slot and must be called exactly once; calling it
// again is a no-op.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	release := func() {}
	if l.slots != nil {
		if err := l.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		l.inUse.Add(1)
		var once sync.Once
		release = func() {
			once.Do(func() {
				l.inUse.Add(-1)
				l.slots.Release(1)
			})
		}
	}

	if err := l.take(ctx); err != nil {
		release()
		return nil, err
	}

	// Spread callers that would otherwise all fire on the same refill boundary.
	if l.saturated() && l.cfg.MinSleepTime > 0 {
		if err := l.sleep(ctx, l.jitter(l.cfg.MinSleepTime)); err != nil {
			release()
			return nil, err
		}
	}

	return release, nil
}

// Throttle runs fn while holding a slot and a token. The slot is released on
// every exit path, including a panic in fn.
func (l *Limiter) Throttle(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Available returns a snapshot of the token balance.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}

// InFlight returns the number of callers currently holding a slot.
func (l *Limiter) InFlight() int {
	return int(l.inUse.Load())
}

func (l *Limiter) take(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.tokens < 1 {
			l.refillLocked()
		}
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := l.waitLocked()
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) refillLocked() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	l.lastRefill = now
	if elapsed <= 0 {
		return
	}

	added := elapsed.Seconds() / l.cfg.Period.Seconds() * float64(l.cfg.RequestsPerPeriod)
	l.tokens = min(l.tokens+added, l.maxTokens)
}

// waitLocked is the time until the deficit below one token is refilled, capped
// by MinSleepTime when set.
func (l *Limiter) waitLocked() time.Duration {
	perToken := float64(l.cfg.Period) / float64(l.cfg.RequestsPerPeriod)
	wait := time.Duration((1 - l.tokens) * perToken)
	if l.cfg.MinSleepTime > 0 && wait > l.cfg.MinSleepTime {
		wait = l.cfg.MinSleepTime
	}
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

func (l *Limiter) saturated() bool {
	return l.slots != nil && l.inUse.Load() >= int64(l.cfg.ConcurrencyLimit)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
