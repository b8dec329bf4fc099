// Package httpclient provides an HTTP client with application-level retries.
//
// The client wraps a standard *http.Client and adds a synchronous retry loop
// around each request:
//   - Retryable outcomes are 429 responses, 5xx responses, timeouts,
//     connection failures, and truncated or malformed responses.
//   - Delays grow exponentially (base * 2^(n-1)) with additive uniform
//     jitter, and a Retry-After header on a 429 response overrides the
//     computed delay when it parses as a non-negative integer.
//   - Total sleep across all retries of one call is bounded by the policy's
//     MaxBackoffTotal; the last sleep is clipped to the remaining budget.
//
// Retry policy defaults are set at construction and can be overridden per
// call without mutating the shared defaults:
//
//	client := httpclient.NewClient(httpclient.ClientOptions{})
//
//	one := 1
//	resp, err := client.Get("https://example.com/search", &httpclient.RequestOptions{
//		Retry: &httpclient.PolicyOverrides{MaxRetries: &one},
//	})
//
// A final response with status >= 400 is converted into *errors.StatusError.
// Transport errors that exhaust the retry budget are returned to the caller
// exactly as the transport produced them.
//
// Jitter is drawn from a rand.Rand owned by the client; pass RandomSeed in
// ClientOptions (together with an injected Sleep function) to make retry
// timing fully deterministic in tests.
package httpclient
