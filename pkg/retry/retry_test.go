package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxRetries:  3,
		BaseDelay:   5 * time.Millisecond,
		MaxDelay:    20 * time.Millisecond,
		Multiplier:  2.0,
		JitterRatio: 0,
	}
}

func TestDoSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastConfig(), func() (string, error) {
		calls++
		return "success", nil
	})
	if err != nil || result != "success" || calls != 1 {
		t.Fatalf("Do() = %q, %v after %d calls", result, err, calls)
	}
}

func TestDoRetryableError(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, Retryable(errors.New("temporary error"))
		}
		return 42, nil
	})
	if err != nil || result != 42 || calls != 3 {
		t.Fatalf("Do() = %d, %v after %d calls", result, err, calls)
	}
}

func TestDoNonRetryableError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(), func() (string, error) {
		calls++
		return "", errors.New("permanent error")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one call and an error, got %d calls, err %v", calls, err)
	}
}

func TestDoExhaustedUnwraps(t *testing.T) {
	base := errors.New("still down")
	calls := 0
	_, err := Do(context.Background(), fastConfig(), func() (string, error) {
		calls++
		return "", Retryable(base)
	})
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
	if err != base {
		t.Fatalf("expected the unwrapped error, got %v", err)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig()
	cfg.BaseDelay = time.Second
	cfg.MaxDelay = time.Second
	calls := 0
	_, err := Do(ctx, cfg, func() (string, error) {
		calls++
		cancel()
		return "", Retryable(errors.New("temporary"))
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("Do() err = %v after %d calls", err, calls)
	}
}

func TestCalculateDelay(t *testing.T) {
	cfg := fastConfig()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Millisecond},
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{5, 20 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := cfg.calculateDelay(tt.attempt); got != tt.want {
			t.Fatalf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	cfg.JitterRatio = 0.5
	for i := 0; i < 20; i++ {
		d := cfg.calculateDelay(1)
		if d < 5*time.Millisecond || d > 15*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", d)
		}
	}
}

func TestRetryableStatus(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusNotFound:            false,
		http.StatusTooManyRequests:     true,
		http.StatusBadGateway:          true,
		http.StatusInternalServerError: true,
	} {
		if got := RetryableStatus(code); got != want {
			t.Fatalf("RetryableStatus(%d) = %v", code, got)
		}
	}
}
