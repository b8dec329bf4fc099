package httpclient

import (
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Policy holds the retry configuration for a client.
type Policy struct {
	// MaxRetries is the ceiling on retry attempts, not counting the
	// first attempt.
	MaxRetries int
	// BackoffBase is the base of the exponential delay term.
	BackoffBase time.Duration
	// BackoffJitter is the exclusive upper bound of the additive uniform
	// random jitter. Zero disables jitter.
	BackoffJitter time.Duration
	// MaxBackoffTotal bounds the cumulative sleep across all retries of
	// one logical call.
	MaxBackoffTotal time.Duration
}

// DefaultPolicy returns the retry policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		BackoffBase:     500 * time.Millisecond,
		BackoffJitter:   200 * time.Millisecond,
		MaxBackoffTotal: 15 * time.Second,
	}
}

// PolicyOverrides carries optional per-call retry settings. Nil fields
// inherit the client's defaults; set fields apply to that call only.
type PolicyOverrides struct {
	MaxRetries      *int
	BackoffBase     *time.Duration
	BackoffJitter   *time.Duration
	MaxBackoffTotal *time.Duration
}

// withOverrides resolves the effective policy for one call. The receiver
// is copied, so client defaults are never mutated.
func (p Policy) withOverrides(o *PolicyOverrides) Policy {
	if o == nil {
		return p
	}
	if o.MaxRetries != nil {
		p.MaxRetries = *o.MaxRetries
	}
	if o.BackoffBase != nil {
		p.BackoffBase = *o.BackoffBase
	}
	if o.BackoffJitter != nil {
		p.BackoffJitter = *o.BackoffJitter
	}
	if o.MaxBackoffTotal != nil {
		p.MaxBackoffTotal = *o.MaxBackoffTotal
	}
	return p
}

// computeBackoff returns the delay before retry attempt n (1-based):
// BackoffBase * 2^(n-1) plus uniform jitter in [0, BackoffJitter).
func computeBackoff(attempt int, pol Policy, rng *rand.Rand) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(pol.BackoffBase) * math.Pow(2, float64(attempt-1))

	if pol.BackoffJitter > 0 {
		delay += float64(rng.Int63n(int64(pol.BackoffJitter)))
	}

	return time.Duration(delay)
}

// applyBudget clips delay to the budget remaining after slept. The second
// return reports whether the delay was capped; the third reports that no
// budget remains and the retry loop must stop without sleeping.
func applyBudget(delay, slept, total time.Duration) (time.Duration, bool, bool) {
	if slept+delay <= total {
		return delay, false, false
	}
	remaining := total - slept
	if remaining <= 0 {
		return 0, false, true
	}
	return remaining, true, false
}

// retryAfterDelay extracts a server-supplied retry hint from a 429
// response. Only a non-negative integer number of seconds is honored;
// any other format is treated as absent.
func retryAfterDelay(resp *http.Response) (time.Duration, bool) {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(strings.TrimSpace(ra))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
