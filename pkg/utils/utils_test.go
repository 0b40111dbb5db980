package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{8.5, "$8.50"},
		{1234.567, "$1,234.57"},
		{10000, "$10,000.00"},
		{-1234567.891, "-$1,234,567.89"},
		{999.999, "$1,000.00"},
	}
	for _, tt := range tests {
		if got := FormatUSD(tt.in); got != tt.want {
			t.Errorf("FormatUSD(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	if got := FormatPrice(0.12345); got != "$0.1235" {
		t.Errorf("FormatPrice(0.12345) = %q", got)
	}
	if got := FormatPrice(8.4242); got != "$8.42" {
		t.Errorf("FormatPrice(8.4242) = %q", got)
	}
}

func TestFormatPnL(t *testing.T) {
	tests := map[float64]string{
		500:   "+$500.00",
		-200:  "-$200.00",
		0:     "$0.00",
		0.001: "$0.00",
	}
	for in, want := range tests {
		if got := FormatPnL(in); got != want {
			t.Errorf("FormatPnL(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatPercentAndCompact(t *testing.T) {
	if got := FormatPercent(12.5); got != "+12.50%" {
		t.Errorf("FormatPercent() = %q", got)
	}
	if got := FormatPercent(-3); got != "-3.00%" {
		t.Errorf("FormatPercent() = %q", got)
	}
	if got := FormatCompact(2_500_000); got != "$2.50M" {
		t.Errorf("FormatCompact() = %q", got)
	}
	if got := FormatCompact(950); got != "$950.00" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatAsset(t *testing.T) {
	if got := FormatAsset(1234.5); got != "1,234.500000" {
		t.Errorf("FormatAsset() = %q", got)
	}
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("Retry() = %v after %d calls", err, calls)
	}

	calls = 0
	permanent := errors.New("permanent")
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }
	err = Retry(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("non-retryable error: %v after %d calls", err, calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}

	got, err := RetryWithResult(ctx, cfg, func() (int, error) {
		cancel()
		return 0, errors.New("down")
	})
	if !errors.Is(err, context.Canceled) || got != 0 {
		t.Errorf("RetryWithResult() = %v, %v, want context.Canceled", got, err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	if d := CalculateBackoff(3, 100*time.Millisecond, time.Second, 2); d != 800*time.Millisecond {
		t.Errorf("attempt 3 = %v", d)
	}
	if d := CalculateBackoff(10, 100*time.Millisecond, time.Second, 2); d != time.Second {
		t.Errorf("capped backoff = %v", d)
	}
	if d := CalculateBackoff(4, 50*time.Millisecond, 0, 0.5); d != 50*time.Millisecond {
		t.Errorf("factor below one = %v", d)
	}
}
