package news

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Watermark records when the provider was last called. Share one instance
// between every limiter that talks to the same provider.
type Watermark struct {
	mu   sync.Mutex
	last time.Time
}

func NewWatermark() *Watermark {
	return &Watermark{}
}

type RateLimitConfig struct {
	Interval   time.Duration
	MaxRetries int
	Backoff    time.Duration
	Jitter     time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Interval:   500 * time.Millisecond,
		MaxRetries: 3,
		Backoff:    15 * time.Second,
		Jitter:     250 * time.Millisecond,
	}
}

// RateLimiter spaces provider calls by a minimum interval and retries quota
// errors with exponential backoff.
type RateLimiter struct {
	watermark *Watermark
	cfg       RateLimitConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

func NewRateLimiter(watermark *Watermark, cfg RateLimitConfig) *RateLimiter {
	if watermark == nil {
		watermark = NewWatermark()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &RateLimiter{
		watermark: watermark,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepContext,
		rand:      rand.Float64,
	}
}

// Do runs task once the pacing interval has elapsed. Quota errors are retried
// up to MaxRetries times; any other error is returned immediately.
func (l *RateLimiter) Do(ctx context.Context, task func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := l.attempt(ctx, task)
		if err == nil {
			return nil
		}

		if attempt >= l.cfg.MaxRetries || !IsQuotaError(err) {
			return err
		}

		delay := l.withJitter(l.cfg.Backoff * time.Duration(1<<attempt))
		slog.Warn("search quota hit, backing off", "attempt", attempt+1, "delay", delay, "error", err)

		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (l *RateLimiter) attempt(ctx context.Context, task func(ctx context.Context) error) error {
	l.watermark.mu.Lock()
	defer l.watermark.mu.Unlock()

	if !l.watermark.last.IsZero() {
		remaining := l.cfg.Interval - l.now().Sub(l.watermark.last)
		if remaining > 0 {
			if err := l.sleep(ctx, l.withJitter(remaining)); err != nil {
				return err
			}
		}
	}

	err := task(ctx)
	l.watermark.last = l.now()
	return err
}

func (l *RateLimiter) withJitter(base time.Duration) time.Duration {
	if l.cfg.Jitter <= 0 {
		return base
	}

	variation := time.Duration(l.rand() * float64(l.cfg.Jitter))
	if l.rand() < 0.5 {
		variation = -variation
	}

	return max(0, base+variation)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
