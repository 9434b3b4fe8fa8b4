package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAPIConfig(t *testing.T) {
	cfg := APIConfig()

	if cfg.Delay != 200*time.Millisecond {
		t.Errorf("Delay = %v, want 200ms", cfg.Delay)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.MaxDelay)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %v, want 5", cfg.MaxAttempts)
	}
}

func TestPollConfig(t *testing.T) {
	cfg := PollConfig()

	if cfg.Delay != 50*time.Millisecond {
		t.Errorf("Delay = %v, want 50ms", cfg.Delay)
	}
	if cfg.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %v, want 1", cfg.MaxAttempts)
	}
}

func TestNew_ZeroConfigFallsBackToAPI(t *testing.T) {
	l := New(Config{})

	if l.cfg.Delay != 200*time.Millisecond {
		t.Errorf("Delay = %v, want API default 200ms", l.cfg.Delay)
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := New(Config{Delay: time.Millisecond, BackoffMultiplier: 1.0, MaxDelay: time.Millisecond, MaxAttempts: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("3 waits took %v, want well under a second", elapsed)
	}
}

func TestLimiter_Wait_CancelledContext(t *testing.T) {
	l := New(Config{Delay: time.Hour, BackoffMultiplier: 1.0, MaxDelay: time.Hour, MaxAttempts: 1})

	// Burn the initial token so the next wait blocks.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait with expiring context returned nil")
	}
}

func TestLimiter_HandleError(t *testing.T) {
	l := New(Config{Delay: 10 * time.Millisecond, BackoffMultiplier: 2.0, MaxDelay: time.Second, MaxAttempts: 5})

	t.Run("non-throttle error is not retried", func(t *testing.T) {
		retry, wait := l.HandleError(errors.New("connection refused"))
		if retry {
			t.Error("retry = true for non-throttle error")
		}
		if wait != 0 {
			t.Errorf("wait = %v, want 0", wait)
		}
	})

	t.Run("429 backs off exponentially", func(t *testing.T) {
		retry, wait1 := l.HandleError(errors.New("API error 429: too many requests"))
		if !retry {
			t.Fatal("retry = false for 429")
		}
		retry, wait2 := l.HandleError(errors.New("rate limit exceeded"))
		if !retry {
			t.Fatal("retry = false for rate limit error")
		}
		if wait2 <= wait1 {
			t.Errorf("backoff not growing: %v then %v", wait1, wait2)
		}
	})
}

func TestLimiter_HandleError_MaxDelayCap(t *testing.T) {
	l := New(Config{Delay: 10 * time.Millisecond, BackoffMultiplier: 10.0, MaxDelay: 50 * time.Millisecond, MaxAttempts: 10})

	var wait time.Duration
	for i := 0; i < 5; i++ {
		_, wait = l.HandleError(errors.New("429"))
	}
	if wait > 50*time.Millisecond {
		t.Errorf("wait = %v, want capped at 50ms", wait)
	}
}

func TestLimiter_HandleError_MaxAttempts(t *testing.T) {
	l := New(Config{Delay: time.Millisecond, BackoffMultiplier: 1.0, MaxDelay: time.Millisecond, MaxAttempts: 2})

	retry, _ := l.HandleError(errors.New("429"))
	if !retry {
		t.Fatal("first throttle not retryable")
	}
	retry, _ = l.HandleError(errors.New("429"))
	if retry {
		t.Error("retry = true past MaxAttempts")
	}
}

func TestLimiter_Success_ResetsBackoff(t *testing.T) {
	l := New(Config{Delay: time.Millisecond, BackoffMultiplier: 2.0, MaxDelay: time.Second, MaxAttempts: 5})

	l.HandleError(errors.New("429"))
	l.HandleError(errors.New("429"))
	l.Success()

	l.mu.Lock()
	throttles, delay := l.throttles, l.currentDelay
	l.mu.Unlock()

	if throttles != 0 {
		t.Errorf("throttles = %d after Success, want 0", throttles)
	}
	if delay != time.Millisecond {
		t.Errorf("currentDelay = %v after Success, want base delay", delay)
	}
}

func TestExecuteWithRetry_Success(t *testing.T) {
	l := New(Config{Delay: time.Millisecond, BackoffMultiplier: 1.0, MaxDelay: time.Millisecond, MaxAttempts: 3})

	calls := 0
	err := l.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithRetry returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestExecuteWithRetry_EventualSuccess(t *testing.T) {
	l := New(Config{Delay: time.Millisecond, BackoffMultiplier: 1.0, MaxDelay: time.Millisecond, MaxAttempts: 3})

	calls := 0
	err := l.ExecuteWithRetry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("429")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithRetry returned error: %v", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
}

func TestExecuteWithRetry_NonRetryableError(t *testing.T) {
	l := New(Config{Delay: time.Millisecond, BackoffMultiplier: 1.0, MaxDelay: time.Millisecond, MaxAttempts: 3})

	boom := errors.New("boom")
	calls := 0
	err := l.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want original error", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}
