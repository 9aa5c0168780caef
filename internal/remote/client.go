// Package remote is the HTTP client for the Memory Vault backend.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/metrics"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryStep  = time.Second
)

// TokenSource returns the current session token, or "" when logged out.
type TokenSource func() string

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func() string { return token }
}

// Client talks JSON to the backend. It is safe for concurrent use: retry
// state lives on the stack of each call.
type Client struct {
	baseURL string
	http    *http.Client
	rc      *resty.Client
	log     zerolog.Logger

	token          TokenSource
	onUnauthorized func()
	maxRetries     int
	retryStep      time.Duration
}

// New constructs a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: defaultTimeout},
		log:        zerolog.Nop(),
		maxRetries: defaultMaxRetries,
		retryStep:  defaultRetryStep,
	}

	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.wrapTransportWithToken()
	c.rc = resty.NewWithClient(c.http).
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json")
	return c, nil
}

// BaseURL returns the backend root the client was built for.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) wrapTransportWithToken() {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = &tokenTransport{base: base, token: c.token}
}

// tokenTransport adds "Authorization: Bearer <token>" when a token is present.
type tokenTransport struct {
	base  http.RoundTripper
	token TokenSource
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == nil {
		return t.base.RoundTrip(req)
	}
	tok := t.token()
	if tok == "" {
		return t.base.RoundTrip(req)
	}
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+tok)
	return t.base.RoundTrip(cloned)
}

// Get issues a GET and decodes the JSON response into out (may be nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do performs one logical request. out may be a pointer to decode JSON into,
// a *[]byte to receive the raw body, or nil. Network errors and 5xx are
// retried with a linear backoff of attempt*step, at most maxRetries times.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	op := method + " " + path
	start := time.Now()

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: c.retryStep}, uint64(c.maxRetries)),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		err := c.once(ctx, method, path, body, out)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		metrics.IncRemoteRetry(op)
		c.log.Warn().Err(err).Str("operation", op).Dur("wait", wait).Msg("backend request failed, retrying")
	})

	metrics.ObserveRemoteRequest(op, outcome(err), start)
	return err
}

func (c *Client) once(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path
	req := c.rc.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return NewNetworkError(op, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return c.statusError(op, resp.StatusCode(), resp.String())
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = append((*raw)[:0], resp.Body()...)
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) statusError(op string, status int, body string) error {
	if status == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	return NewHTTPError(status, body, op)
}

// linearBackOff waits step, 2*step, 3*step, ...
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() { b.attempt = 0 }
