package news

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func newTestLimiter(w *Watermark, cfg RateLimitConfig, clock *fakeClock) *RateLimiter {
	l := NewRateLimiter(w, cfg)
	l.now = clock.Now
	l.sleep = clock.Sleep
	l.rand = func() float64 { return 0.75 }
	return l
}

func TestRateLimiter_SpacesConsecutiveCalls(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	l := newTestLimiter(nil, RateLimitConfig{Interval: 500 * time.Millisecond}, clock)

	calls := 0
	task := func(ctx context.Context) error {
		calls++
		return nil
	}

	assert.Equal(t, nil, l.Do(context.Background(), task))
	assert.Equal(t, 0, len(clock.sleeps))

	clock.now = clock.now.Add(200 * time.Millisecond)
	assert.Equal(t, nil, l.Do(context.Background(), task))

	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, clock.sleeps)
}

func TestRateLimiter_SharedWatermark(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	w := NewWatermark()
	cfg := RateLimitConfig{Interval: time.Second}

	a := newTestLimiter(w, cfg, clock)
	b := newTestLimiter(w, cfg, clock)
	isolated := newTestLimiter(nil, cfg, clock)

	noop := func(ctx context.Context) error { return nil }

	a.Do(context.Background(), noop)
	b.Do(context.Background(), noop)
	assert.Equal(t, []time.Duration{time.Second}, clock.sleeps)

	isolated.Do(context.Background(), noop)
	assert.Equal(t, 1, len(clock.sleeps))
}

func TestRateLimiter_JitterStaysNonNegative(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	l := newTestLimiter(nil, RateLimitConfig{Jitter: time.Second}, clock)
	l.rand = func() float64 { return 0.25 }

	assert.Equal(t, time.Duration(0), l.withJitter(100*time.Millisecond))

	l.rand = func() float64 { return 0.75 }
	assert.Equal(t, 850*time.Millisecond, l.withJitter(100*time.Millisecond))
}

func TestRateLimiter_RetriesQuotaErrorsWithBackoff(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	l := newTestLimiter(nil, RateLimitConfig{MaxRetries: 3, Backoff: time.Second}, clock)

	calls := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &APIError{StatusCode: 429, Message: "Too Many Requests"}
		}
		return nil
	})

	assert.Equal(t, nil, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
}

func TestRateLimiter_ReturnsFinalErrorWhenRetriesExhausted(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	l := newTestLimiter(nil, RateLimitConfig{MaxRetries: 2, Backoff: time.Second}, clock)

	calls := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("daily quota exceeded")
	})

	assert.Equal(t, "daily quota exceeded", err.Error())
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
}

func TestRateLimiter_DoesNotRetryOtherErrors(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	l := newTestLimiter(nil, RateLimitConfig{MaxRetries: 3, Backoff: time.Second}, clock)

	calls := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &APIError{StatusCode: 500, Message: "backend error"}
	})

	assert.NotEqual(t, nil, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, len(clock.sleeps))
}

func TestRateLimiter_StopsWhenContextCancelled(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	l := newTestLimiter(nil, RateLimitConfig{MaxRetries: 3, Backoff: time.Second}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := l.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return &APIError{StatusCode: 429, Message: "rate limit"}
	})

	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 1, calls)
}

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "429 status", err: &APIError{StatusCode: 429, Message: "slow down"}, want: true},
		{name: "quota message", err: errors.New("Quota exceeded for quota metric"), want: true},
		{name: "rate limit message", err: errors.New("User Rate Limit Exceeded"), want: true},
		{name: "server error", err: &APIError{StatusCode: 503, Message: "unavailable"}, want: false},
		{name: "network error", err: errors.New("connection reset by peer"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsQuotaError(tt.err))
		})
	}
}
