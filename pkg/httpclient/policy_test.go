package httpclient

import (
	"math/rand"
	"net/http"
	"testing"
	"time"
)

func TestComputeBackoffNoJitter(t *testing.T) {
	pol := Policy{
		BackoffBase:   time.Second,
		BackoffJitter: 0,
	}
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{10, 512 * time.Second},
	}

	for _, tt := range tests {
		if got := computeBackoff(tt.attempt, pol, rng); got != tt.want {
			t.Errorf("computeBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestComputeBackoffJitterRange(t *testing.T) {
	pol := Policy{
		BackoffBase:   100 * time.Millisecond,
		BackoffJitter: 50 * time.Millisecond,
	}
	rng := rand.New(rand.NewSource(42))

	seen := make(map[time.Duration]bool)
	for i := 0; i < 50; i++ {
		d := computeBackoff(1, pol, rng)
		if d < 100*time.Millisecond || d >= 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 150ms)", d)
		}
		seen[d] = true
	}
	if len(seen) < 2 {
		t.Error("expected jitter to vary across draws")
	}
}

func TestComputeBackoffDeterministicSeed(t *testing.T) {
	pol := Policy{
		BackoffBase:   100 * time.Millisecond,
		BackoffJitter: 50 * time.Millisecond,
	}

	a := rand.New(rand.NewSource(7))
	b := rand.New(rand.NewSource(7))

	for i := 1; i <= 5; i++ {
		if computeBackoff(i, pol, a) != computeBackoff(i, pol, b) {
			t.Fatalf("same seed produced different delays at attempt %d", i)
		}
	}
}

func TestComputeBackoffNonPositiveAttempt(t *testing.T) {
	pol := DefaultPolicy()
	rng := rand.New(rand.NewSource(1))

	if got := computeBackoff(0, pol, rng); got != 0 {
		t.Errorf("computeBackoff(0) = %v, want 0", got)
	}
	if got := computeBackoff(-1, pol, rng); got != 0 {
		t.Errorf("computeBackoff(-1) = %v, want 0", got)
	}
}

func TestApplyBudget(t *testing.T) {
	tests := []struct {
		name       string
		delay      time.Duration
		slept      time.Duration
		total      time.Duration
		wantDelay  time.Duration
		wantCapped bool
		wantStop   bool
	}{
		{"within budget", time.Second, 0, 15 * time.Second, time.Second, false, false},
		{"exactly at budget", time.Second, 14 * time.Second, 15 * time.Second, time.Second, false, false},
		{"clipped to remainder", 4 * time.Second, 14 * time.Second, 15 * time.Second, time.Second, true, false},
		{"budget consumed", time.Second, 15 * time.Second, 15 * time.Second, 0, false, true},
		{"budget overshot", time.Second, 16 * time.Second, 15 * time.Second, 0, false, true},
		{"zero budget", time.Second, 0, 0, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, capped, stop := applyBudget(tt.delay, tt.slept, tt.total)
			if delay != tt.wantDelay || capped != tt.wantCapped || stop != tt.wantStop {
				t.Errorf("applyBudget(%v, %v, %v) = (%v, %v, %v), want (%v, %v, %v)",
					tt.delay, tt.slept, tt.total, delay, capped, stop,
					tt.wantDelay, tt.wantCapped, tt.wantStop)
			}
		})
	}
}

func TestWithOverrides(t *testing.T) {
	base := DefaultPolicy()

	if got := base.withOverrides(nil); got != base {
		t.Errorf("nil overrides changed the policy: %+v", got)
	}

	retries := 7
	jitter := time.Duration(0)
	got := base.withOverrides(&PolicyOverrides{
		MaxRetries:    &retries,
		BackoffJitter: &jitter,
	})

	if got.MaxRetries != 7 || got.BackoffJitter != 0 {
		t.Errorf("overrides not applied: %+v", got)
	}
	if got.BackoffBase != base.BackoffBase || got.MaxBackoffTotal != base.MaxBackoffTotal {
		t.Errorf("unset fields should inherit defaults: %+v", got)
	}
	if base.MaxRetries != 3 {
		t.Errorf("defaults mutated by override: %+v", base)
	}
}

func TestRetryAfterDelay(t *testing.T) {
	mk := func(value string) *http.Response {
		h := http.Header{}
		if value != "" {
			h.Set("Retry-After", value)
		}
		return &http.Response{Header: h}
	}

	tests := []struct {
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"5", 5 * time.Second, true},
		{"0", 0, true},
		{" 3 ", 3 * time.Second, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-1", 0, false},
		{"2.5", 0, false},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0, false},
	}

	for _, tt := range tests {
		got, ok := retryAfterDelay(mk(tt.value))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("retryAfterDelay(%q) = (%v, %v), want (%v, %v)",
				tt.value, got, ok, tt.want, tt.wantOK)
		}
	}
}
