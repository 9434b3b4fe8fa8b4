// Package ratelimit paces outbound provider API calls and the worker's
// queue polling, with exponential backoff on throttling errors.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds limiter settings.
type Config struct {
	// Delay is the minimum spacing between calls.
	Delay time.Duration
	// BackoffMultiplier grows the delay after consecutive throttles.
	BackoffMultiplier float64
	// MaxDelay caps the backed-off delay.
	MaxDelay time.Duration
	// MaxAttempts bounds ExecuteWithRetry.
	MaxAttempts int
}

// APIConfig returns the pacing used for provider API calls.
func APIConfig() Config {
	return Config{
		Delay:             200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       5,
	}
}

// PollConfig returns the pacing used between worker claim polls. Claims are
// cheap single-row reads, so the spacing is short and backoff never grows.
func PollConfig() Config {
	return Config{
		Delay:             50 * time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxDelay:          50 * time.Millisecond,
		MaxAttempts:       1,
	}
}

// Limiter spaces calls out and backs off when the remote side throttles.
type Limiter struct {
	limiter *rate.Limiter
	cfg     Config

	mu           sync.Mutex
	throttles    int
	currentDelay time.Duration
}

// New creates a limiter from the given config.
func New(cfg Config) *Limiter {
	if cfg.Delay <= 0 {
		cfg = APIConfig()
	}
	return &Limiter{
		limiter:      rate.NewLimiter(perSecond(cfg.Delay), 1),
		cfg:          cfg,
		currentDelay: cfg.Delay,
	}
}

// Wait blocks until the next call is allowed.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// HandleError inspects an error for throttling and returns whether the call
// should be retried and how long to wait first. Non-throttle errors are
// never retried here.
func (l *Limiter) HandleError(err error) (retry bool, wait time.Duration) {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "429") && !strings.Contains(msg, "rate limit") {
		return false, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.throttles++
	wait = time.Duration(math.Min(
		float64(l.currentDelay)*math.Pow(l.cfg.BackoffMultiplier, float64(l.throttles-1)),
		float64(l.cfg.MaxDelay),
	))
	if wait > l.currentDelay {
		l.currentDelay = wait
		l.limiter.SetLimit(perSecond(wait))
	}
	return l.throttles < l.cfg.MaxAttempts, wait
}

// Success resets backoff after a clean call.
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.throttles == 0 {
		return
	}
	l.throttles = 0
	l.currentDelay = l.cfg.Delay
	l.limiter.SetLimit(perSecond(l.cfg.Delay))
}

// ExecuteWithRetry runs fn under pacing, retrying throttled calls with
// backoff up to MaxAttempts.
func (l *Limiter) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt < l.cfg.MaxAttempts; attempt++ {
		if err := l.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		err := fn()
		if err == nil {
			l.Success()
			return nil
		}

		retry, wait := l.HandleError(err)
		if !retry {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("max retry attempts (%d) exceeded", l.cfg.MaxAttempts)
}

func perSecond(delay time.Duration) rate.Limit {
	return rate.Limit(float64(time.Second) / float64(delay))
}
