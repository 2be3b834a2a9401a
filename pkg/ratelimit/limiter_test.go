package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowConsumesBurst(t *testing.T) {
	limiter := NewRateLimiter(10, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d within burst must pass", i+1)
		}
	}
	if limiter.Allow() {
		t.Error("request beyond burst must be rejected")
	}
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	// 100 токенов/сек: следующий токен через ~10ms
	limiter := NewRateLimiter(100, 1)
	if !limiter.Allow() {
		t.Fatal("first token must be available")
	}

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("wait returned too early: %v", elapsed)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	limiter.Allow() // опустошаем ведро

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestDefaults(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		burst     float64
		wantRate  float64
		wantBurst float64
	}{
		{"zero rate and burst", 0, 0, 10, 20},
		{"negative rate", -5, 10, 10, 10},
		{"negative burst", 8, -1, 8, 16},
		{"explicit burst below rate", 8, 2, 8, 2},
		{"explicit", 5, 9, 5, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewRateLimiter(tt.rate, tt.burst)
			if limiter.Rate() != tt.wantRate {
				t.Errorf("rate = %v, want %v", limiter.Rate(), tt.wantRate)
			}
			if limiter.burst != tt.wantBurst {
				t.Errorf("burst = %v, want %v", limiter.burst, tt.wantBurst)
			}
		})
	}
}

func TestSetRate(t *testing.T) {
	limiter := NewRateLimiter(10, 20)
	limiter.SetRate(2)
	if limiter.Rate() != 2 {
		t.Errorf("rate = %v, want 2", limiter.Rate())
	}

	// Невалидная скорость игнорируется
	limiter.SetRate(0)
	if limiter.Rate() != 2 {
		t.Errorf("rate = %v, want unchanged 2", limiter.Rate())
	}
}
