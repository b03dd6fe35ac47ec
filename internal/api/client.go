// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Package api is the client for the upstream marathon event-management
// REST API. Every response uses the envelope format
// {"success": bool, "data": ..., "count": ..., "error": ...}.
//
// The client classifies failures into transport, auth, business, and
// malformed kinds, wraps all calls in a circuit breaker, and retries
// rate-limited requests with exponential backoff.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kmoyo/raceday/internal/cache"
	"github.com/kmoyo/raceday/internal/logging"
	"github.com/kmoyo/raceday/internal/metrics"
	"github.com/kmoyo/raceday/internal/models"
)

// TokenSource supplies the current bearer token. An empty string means
// no session; the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// maxAttempts bounds retries of rate-limited (429) requests.
const maxAttempts = 3

// Config carries the client construction parameters.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Tokens supplies the bearer token per request. May be nil for a
	// client that only performs login.
	Tokens TokenSource

	// OnUnauthorized is invoked once per request that comes back 401,
	// before the error is returned. May be nil.
	OnUnauthorized func()
}

// Client talks to the marathon API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	onUnauthorized func()
	cb             *gobreaker.CircuitBreaker[*rawResponse]

	// geomCache holds decoded route geometries; they are immutable
	// upstream once a route is published.
	geomCache *cache.LRU
}

// rawResponse is what the circuit breaker transports: the decoded-later
// body plus status and headers.
type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

// NewClient creates a marathon API client.
//
// Circuit breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 30 second timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cbName := "marathon-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening marathon API circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("marathon API circuit state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		tokens:         cfg.Tokens,
		onUnauthorized: cfg.OnUnauthorized,
		cb:             cb,
		geomCache:      cache.NewLRU(64, 10*time.Minute),
	}
}

// SetOnUnauthorized installs the 401 hook after construction. The
// session layer uses this to break the client/session setup cycle.
func (c *Client) SetOnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// doEnvelope performs a JSON request and decodes the envelope.
// endpoint is the logical operation name used for metrics labels.
func (c *Client) doEnvelope(ctx context.Context, endpoint, method, path string, query url.Values, body interface{}) (*models.Envelope, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindMalformed, Message: fmt.Sprintf("encode request body: %v", err), Err: err}
		}
	}

	resp, err := c.roundTrip(ctx, endpoint, method, path, query, "application/json", payload)
	if err != nil {
		return nil, err
	}

	return c.decodeEnvelope(endpoint, resp)
}

// decodeEnvelope turns a raw response into an envelope or a classified
// error, counting the outcome.
func (c *Client) decodeEnvelope(endpoint string, resp *rawResponse) (*models.Envelope, error) {
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		metrics.APIRequestsTotal.WithLabelValues(endpoint, "auth").Inc()
		if resp.status == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, &Error{Kind: KindAuth, Status: resp.status, Message: envelopeMessage(resp.body, "authentication required")}
	}

	env := &models.Envelope{}
	if err := json.Unmarshal(resp.body, env); err != nil {
		metrics.APIRequestsTotal.WithLabelValues(endpoint, "malformed").Inc()
		return nil, malformedErr(resp.status, err)
	}

	if resp.status >= 400 || !env.Success {
		metrics.APIRequestsTotal.WithLabelValues(endpoint, "business").Inc()
		msg := env.ErrorText()
		if msg == "" {
			msg = http.StatusText(resp.status)
		}
		return nil, &Error{Kind: KindBusiness, Status: resp.status, Message: msg}
	}

	metrics.APIRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	return env, nil
}

// decodeData performs a JSON request and unmarshals the envelope data
// field into out. out may be nil when the caller only needs success.
// Returns the envelope count, or -1 when absent.
func (c *Client) decodeData(ctx context.Context, endpoint, method, path string, query url.Values, body, out interface{}) (int, error) {
	env, err := c.doEnvelope(ctx, endpoint, method, path, query, body)
	if err != nil {
		return 0, err
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			metrics.APIRequestsTotal.WithLabelValues(endpoint, "malformed").Inc()
			return 0, malformedErr(http.StatusOK, err)
		}
	}

	if env.Count != nil {
		return *env.Count, nil
	}
	return -1, nil
}

// doBlob performs a request whose response is a raw file download, not
// an envelope. Returns the body and its Content-Type.
func (c *Client) doBlob(ctx context.Context, endpoint, method, path string, query url.Values) ([]byte, string, error) {
	resp, err := c.roundTrip(ctx, endpoint, method, path, query, "", nil)
	if err != nil {
		return nil, "", err
	}

	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		metrics.APIRequestsTotal.WithLabelValues(endpoint, "auth").Inc()
		if resp.status == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, "", &Error{Kind: KindAuth, Status: resp.status, Message: "authentication required"}
	}

	if resp.status >= 400 {
		metrics.APIRequestsTotal.WithLabelValues(endpoint, "business").Inc()
		return nil, "", &Error{Kind: KindBusiness, Status: resp.status, Message: envelopeMessage(resp.body, http.StatusText(resp.status))}
	}

	metrics.APIRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	return resp.body, resp.header.Get("Content-Type"), nil
}

// uploadFile performs a multipart upload with a single file part named
// "file" plus optional extra form fields, then decodes the envelope.
func (c *Client) uploadFile(ctx context.Context, endpoint, method, path, filename string, content []byte, fields map[string]string) (*models.Envelope, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, transportErr(err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, transportErr(err)
	}
	for key, val := range fields {
		if err := mw.WriteField(key, val); err != nil {
			return nil, transportErr(err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, transportErr(err)
	}

	resp, err := c.roundTrip(ctx, endpoint, method, path, nil, mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return nil, err
	}

	return c.decodeEnvelope(endpoint, resp)
}

// roundTrip sends one logical request through the circuit breaker,
// retrying on 429 up to maxAttempts with exponential backoff that
// honors Retry-After.
func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, query url.Values, contentType string, body []byte) (*rawResponse, error) {
	timer := prometheus.NewTimer(metrics.APIRequestDuration.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	var lastResp *rawResponse

	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.cb.Execute(func() (*rawResponse, error) {
			return c.send(ctx, method, path, query, contentType, body)
		})
		if err != nil {
			metrics.APIRequestsTotal.WithLabelValues(endpoint, "transport").Inc()
			return nil, transportErr(err)
		}

		if resp.status != http.StatusTooManyRequests {
			return resp, nil
		}

		lastResp = resp
		wait := retryAfter(resp.header, attempt)
		logging.Warn().
			Str("endpoint", endpoint).
			Dur("wait", wait).
			Int("attempt", attempt+1).
			Msg("marathon API rate limited, backing off")

		select {
		case <-ctx.Done():
			metrics.APIRequestsTotal.WithLabelValues(endpoint, "transport").Inc()
			return nil, transportErr(ctx.Err())
		case <-time.After(wait):
		}
	}

	metrics.APIRequestsTotal.WithLabelValues(endpoint, "business").Inc()
	return nil, &Error{Kind: KindBusiness, Status: lastResp.status, Message: "rate limited"}
}

// send performs one HTTP exchange. A non-2xx status is NOT an error at
// this level so the circuit breaker only counts transport failures.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body []byte) (*rawResponse, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}

	if contentType != "" && body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", uuid.NewString())

	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 64<<20))
	if err != nil {
		return nil, err
	}

	return &rawResponse{
		status: httpResp.StatusCode,
		header: httpResp.Header,
		body:   raw,
	}, nil
}

// retryAfter computes the 429 backoff: the Retry-After header when
// present and sane, otherwise 1s, 2s, 4s by attempt.
func retryAfter(header http.Header, attempt int) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 && secs <= 60 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(1<<attempt) * time.Second
}

// envelopeMessage extracts the error text from an envelope body,
// falling back when the body is not an envelope.
func envelopeMessage(body []byte, fallback string) string {
	env := &models.Envelope{}
	if err := json.Unmarshal(body, env); err == nil {
		if msg := env.ErrorText(); msg != "" {
			return msg
		}
	}
	return fallback
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
