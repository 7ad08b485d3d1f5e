package zymmr

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Default client settings
const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxAttempts   = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultMaxRetryDelay = 10 * time.Second
	DefaultPageSize      = 100
	DefaultConcurrency   = 5
	DefaultUserAgent     = "zymmr-go"
)

// Config holds everything a Client needs to reach and authenticate against a
// Zymmr instance.
type Config struct {
	BaseURL  string
	Username string
	Password string

	// Timeout bounds a single HTTP request, not a whole retried operation.
	Timeout time.Duration
	// MaxAttempts is the total number of tries for one operation, first try included.
	MaxAttempts int
	// RetryDelay is the delay before the first retry; it doubles on every further retry.
	RetryDelay time.Duration
	// MaxRetryDelay caps the delay between retries. Zero means uncapped.
	MaxRetryDelay time.Duration

	// AutoLogin makes data calls log in when no session exists yet.
	AutoLogin bool
}

// DefaultConfig returns a Config with default timeouts and retry budget.
// BaseURL and credentials still have to be set.
func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		MaxAttempts:   DefaultMaxAttempts,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
		AutoLogin:     true,
	}
}

// Validate checks the configuration for values the client cannot work with
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("zymmr base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid zymmr base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid zymmr base URL %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid zymmr base URL %q: missing host", c.BaseURL)
	}
	if c.Username == "" {
		return errors.New("zymmr username is required")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if c.RetryDelay <= 0 {
		return errors.New("retry delay must be positive")
	}
	if c.MaxRetryDelay < 0 {
		return errors.New("max retry delay cannot be negative")
	}
	return nil
}

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds the settings that are not part of Config.
type clientOptions struct {
	httpClient  *http.Client
	userAgent   string
	pageSize    int
	concurrency int
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		userAgent:   DefaultUserAgent,
		pageSize:    DefaultPageSize,
		concurrency: DefaultConcurrency,
	}
}

// WithHTTPClient uses a custom HTTP client. The client is copied; a cookie
// jar is attached to the copy when it has none.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithUserAgent sets a custom user agent string.
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		if userAgent != "" {
			o.userAgent = userAgent
		}
	}
}

// WithPageSize sets the page size ListAll uses.
func WithPageSize(size int) Option {
	return func(o *clientOptions) {
		if size > 0 {
			o.pageSize = size
		}
	}
}

// WithConcurrency sets how many requests batch operations run in parallel.
func WithConcurrency(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}
