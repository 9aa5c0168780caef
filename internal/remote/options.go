package remote

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Client during construction in New.
//
// Options run before the token transport is installed, so transports added
// here (debug logging) sit underneath it.
type Option func(*Client) error

// WithHTTPTimeout sets the fixed per-request timeout. Exceeding it surfaces
// as a network error.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.Timeout = d
		return nil
	}
}

// WithHTTPClient replaces the underlying http.Client. Its Timeout and
// Transport are kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		c.http = hc
		return nil
	}
}

// WithToken installs the session token source.
func WithToken(src TokenSource) Option {
	return func(c *Client) error {
		c.token = src
		return nil
	}
}

// WithRetry overrides the retry budget and the linear backoff step.
func WithRetry(maxRetries int, step time.Duration) Option {
	return func(c *Client) error {
		if maxRetries < 0 {
			return fmt.Errorf("max retries must be >= 0")
		}
		if step < 0 {
			return fmt.Errorf("retry step must be >= 0")
		}
		c.maxRetries = maxRetries
		c.retryStep = step
		return nil
	}
}

// WithUnauthorizedHandler is called whenever the backend answers 401,
// before the error is returned.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) error {
		c.onUnauthorized = fn
		return nil
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

// WithDebugLogging dumps every request and response at debug level.
// Dumps include headers and bodies; keep it off outside development.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		if enabled {
			if _, already := c.http.Transport.(*debugTransport); !already {
				c.http.Transport = &debugTransport{base: c.http.Transport}
			}
		}
		return nil
	}
}
