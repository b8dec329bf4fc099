package httpclient

import (
	"bytes"
	"crypto/tls"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"imgfetch/pkg/config"
	errs "imgfetch/pkg/errors"
	"imgfetch/pkg/logger"
)

const (
	// bodyPreviewLimit bounds how much of a failed response body is kept
	// on the StatusError.
	bodyPreviewLimit = 512

	// drainLimit bounds how much of a discarded body is read before
	// closing, so the connection can be reused without unbounded reads.
	drainLimit = 256 << 10
)

// Client is an HTTP client with application-level retries.
//
// Request execution is safe for concurrent use: each call owns its attempt
// state, and the underlying *http.Client pool handles connection sharing.
// Default headers are not guarded; configure them with SetHeader before
// issuing requests, not concurrently with them.
type Client struct {
	http    *http.Client
	policy  Policy
	headers map[string]string
	sleep   func(time.Duration)
	logger  logger.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// ClientOptions configures a Client. The zero value is usable: it yields a
// default transport, the default retry policy, wall-clock sleeps, and
// time-seeded jitter.
type ClientOptions struct {
	// Transport is the underlying HTTP client. Default-constructed with
	// Timeout when nil.
	Transport *http.Client
	// Policy is the default retry policy; nil means DefaultPolicy.
	Policy *Policy
	// Timeout applies to the default-constructed transport only.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS verification on the
	// default-constructed transport.
	InsecureSkipVerify bool
	// Headers are applied to every request, below per-call headers.
	Headers map[string]string
	// RandomSeed seeds the jitter generator for deterministic tests.
	// Nil means time-seeded.
	RandomSeed *int64
	// Sleep replaces the blocking wait between retries, for tests.
	Sleep func(time.Duration)
	// Logger for retry attempts; the global logger when nil.
	Logger logger.Logger
}

// RequestOptions carries the per-call request surface.
type RequestOptions struct {
	// Query parameters appended to the URL.
	Query url.Values
	// Headers set on the request, overriding client defaults.
	Headers map[string]string
	// Body is sent as the request body. Bytes rather than a reader so the
	// body can be reissued on every attempt.
	Body []byte
	// Timeout overrides the client timeout for this call. Applies per
	// attempt, through reading the response body.
	Timeout time.Duration
	// NoRedirect returns redirect responses instead of following them.
	NoRedirect bool
	// InsecureSkipVerify disables TLS verification for this call.
	InsecureSkipVerify bool
	// Stream leaves the response body open on validation failure so the
	// caller can consume it incrementally. Without it, a failed body is
	// previewed and released before the error is returned.
	Stream bool
	// Retry overrides retry policy fields for this call only.
	Retry *PolicyOverrides
}

// NewClient creates a Client from options.
func NewClient(opts ClientOptions) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	hc := opts.Transport
	if hc == nil {
		transport := http.DefaultTransport
		if opts.InsecureSkipVerify {
			t := http.DefaultTransport.(*http.Transport).Clone()
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			transport = t
		}
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		}
	}

	pol := DefaultPolicy()
	if opts.Policy != nil {
		pol = *opts.Policy
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var src rand.Source
	if opts.RandomSeed != nil {
		src = rand.NewSource(*opts.RandomSeed)
	} else {
		src = rand.NewSource(time.Now().UnixNano())
	}

	return &Client{
		http:    hc,
		policy:  pol,
		headers: make(map[string]string),
		sleep:   sleep,
		logger:  log,
		rng:     rand.New(src),
	}
}

// NewClientFromConfig builds a Client from application configuration.
func NewClientFromConfig(cfg *config.HTTPConfig, log logger.Logger) *Client {
	return NewClient(ClientOptions{
		Policy: &Policy{
			MaxRetries:      cfg.MaxRetries,
			BackoffBase:     cfg.BackoffBase,
			BackoffJitter:   cfg.BackoffJitter,
			MaxBackoffTotal: cfg.MaxBackoffTotal,
		},
		Timeout:            cfg.RequestTimeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Logger:             log,
	})
}

// SetHeader sets a default header applied to every request. Not safe to
// call concurrently with in-flight requests.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple default headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// Policy returns the client's default retry policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// Get performs a GET request with retries.
func (c *Client) Get(rawurl string, opts *RequestOptions) (*http.Response, error) {
	return c.Do(http.MethodGet, rawurl, opts)
}

// Do performs an HTTP request with retries.
//
// The response is status-validated: a final status >= 400 is returned as a
// *errors.StatusError. Transport errors that are not retryable, or that
// survive all retries, are returned unchanged. The call blocks through all
// attempts and backoff sleeps.
func (c *Client) Do(method, rawurl string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	pol := c.policy.withOverrides(opts.Retry)
	hc := c.callClient(opts)

	target := rawurl
	if len(opts.Query) > 0 {
		sep := "?"
		if u, err := url.Parse(rawurl); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		target = rawurl + sep + opts.Query.Encode()
	}

	var (
		attempts int
		slept    time.Duration
		lastResp *http.Response
	)

	for {
		req, err := c.buildRequest(method, target, opts)
		if err != nil {
			return nil, err
		}

		resp, err := hc.Do(req)
		if err != nil {
			if !errs.IsRetryableError(err) || attempts >= pol.MaxRetries {
				return nil, err
			}

			delay := c.backoff(attempts+1, pol)
			delay, capped, stop := applyBudget(delay, slept, pol.MaxBackoffTotal)
			if stop {
				c.logger.DebugWithFields("retry budget exhausted", map[string]interface{}{
					"method":   method,
					"url":      rawurl,
					"attempts": attempts,
					"error":    err.Error(),
				})
				return nil, err
			}

			c.logger.DebugWithFields("retrying after transport error", map[string]interface{}{
				"method":  method,
				"url":     rawurl,
				"error":   err.Error(),
				"attempt": attempts + 1,
				"max":     pol.MaxRetries,
				"delay":   delay,
				"capped":  capped,
			})

			c.sleep(delay)
			slept += delay
			attempts++
			continue
		}

		lastResp = resp

		if !errs.IsRetryableStatus(resp.StatusCode) {
			break
		}

		if attempts >= pol.MaxRetries {
			break
		}

		delay, fromHeader := time.Duration(0), false
		if resp.StatusCode == http.StatusTooManyRequests {
			delay, fromHeader = retryAfterDelay(resp)
		}
		if !fromHeader {
			delay = c.backoff(attempts+1, pol)
		}

		delay, capped, stop := applyBudget(delay, slept, pol.MaxBackoffTotal)
		if stop {
			c.logger.DebugWithFields("retry budget exhausted", map[string]interface{}{
				"method":   method,
				"url":      rawurl,
				"attempts": attempts,
				"status":   resp.StatusCode,
			})
			break
		}

		c.logger.DebugWithFields("retrying after retryable status", map[string]interface{}{
			"method":      method,
			"url":         rawurl,
			"status":      resp.StatusCode,
			"attempt":     attempts + 1,
			"max":         pol.MaxRetries,
			"delay":       delay,
			"capped":      capped,
			"retry_after": fromHeader,
		})

		// Release the discarded response before the next attempt
		drainAndClose(resp)
		lastResp = nil

		c.sleep(delay)
		slept += delay
		attempts++
	}

	return c.validate(lastResp, rawurl, opts.Stream)
}

// validate converts a final response with status >= 400 into a StatusError.
// In buffered mode the failed body is previewed and released; in streaming
// mode it is left open for the caller.
func (c *Client) validate(resp *http.Response, rawurl string, stream bool) (*http.Response, error) {
	if resp.StatusCode < 400 {
		return resp, nil
	}

	serr := &errs.StatusError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		URL:    rawurl,
	}

	if stream {
		return resp, serr
	}

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, bodyPreviewLimit))
	serr.BodyPreview = string(preview)
	drainAndClose(resp)

	return nil, serr
}

// buildRequest constructs a fresh request for one attempt
func (c *Client) buildRequest(method, target string, opts *RequestOptions) (*http.Request, error) {
	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, err
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// callClient returns the http.Client for one call, copying the shared one
// when per-call timeout, redirect, or TLS behavior differs.
func (c *Client) callClient(opts *RequestOptions) *http.Client {
	if opts.Timeout == 0 && !opts.NoRedirect && !opts.InsecureSkipVerify {
		return c.http
	}

	hc := *c.http
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}
	if opts.NoRedirect {
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	if opts.InsecureSkipVerify {
		hc.Transport = insecureTransport()
	}
	return &hc
}

var (
	insecureOnce sync.Once
	insecureTr   *http.Transport
)

// insecureTransport returns a shared transport with TLS verification off,
// so repeated insecure calls still pool connections.
func insecureTransport() *http.Transport {
	insecureOnce.Do(func() {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		insecureTr = t
	})
	return insecureTr
}

// backoff draws from the client-owned generator behind its lock so
// concurrent calls compute jitter safely.
func (c *Client) backoff(attempt int, pol Policy) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return computeBackoff(attempt, pol, c.rng)
}

// drainAndClose releases a response's connection back to the pool
func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	resp.Body.Close()
}
