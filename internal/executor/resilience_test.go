package executor

import (
	"testing"
	"time"
)

func TestDelayFuncGrowth(t *testing.T) {
	cfg := RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0, // deterministic for assertions
	}
	delay := cfg.DelayFunc()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second}, // capped
		{9, time.Second},
	}
	for _, tt := range tests {
		if got := delay(tt.attempt); got != tt.want {
			t.Errorf("delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayFuncJitterBounds(t *testing.T) {
	cfg := DefaultRetryConfig()
	delay := cfg.DelayFunc()

	// With a 0.5 randomization factor, the first delay lands in
	// [250ms, 750ms].
	for i := 0; i < 20; i++ {
		d := delay(1)
		if d < 250*time.Millisecond || d > 750*time.Millisecond {
			t.Fatalf("delay(1) = %s, outside jitter bounds", d)
		}
	}
}

func TestDelayFuncIndependentPerCall(t *testing.T) {
	cfg := RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
	delay := cfg.DelayFunc()

	// Earlier calls must not advance state seen by later ones.
	if got := delay(3); got != 400*time.Millisecond {
		t.Fatalf("delay(3) = %s, want 400ms", got)
	}
	if got := delay(1); got != 100*time.Millisecond {
		t.Errorf("delay(1) after delay(3) = %s, want 100ms", got)
	}
}

func TestBreakerRegistryReusesPerTarget(t *testing.T) {
	reg := NewBreakerRegistry()
	a := reg.Get("service-a")
	b := reg.Get("service-b")
	if a == b {
		t.Error("distinct targets share a breaker")
	}
	if again := reg.Get("service-a"); again != a {
		t.Error("repeated Get returned a new breaker for the same target")
	}
}
