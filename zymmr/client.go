package zymmr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// maxResponseSize bounds how much of a response body is read into memory.
const maxResponseSize = 32 << 20

// Client is a Zymmr API client holding one cookie-based Frappe session.
//
// A Client is safe for concurrent use by multiple goroutines. Session state
// transitions (login, re-login after expiry, logout) are serialized.
type Client struct {
	baseURL    string
	cfg        Config
	opts       *clientOptions
	httpClient *http.Client
	logger     zerolog.Logger

	mu            sync.Mutex // guards authenticated, generation and login
	authenticated bool
	generation    uint64

	closed atomic.Bool
}

// NewClient creates a new Zymmr client. No request is made; the session is
// established by Authenticate or by the first data call when AutoLogin is on.
func NewClient(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var httpClient *http.Client
	if options.httpClient != nil {
		copied := *options.httpClient
		httpClient = &copied
	} else {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		httpClient.Jar = jar
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cfg:        cfg,
		opts:       options,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "zymmr").Logger(),
	}, nil
}

// Open creates a client and authenticates it. The caller must Close it.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	client, err := NewClient(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	if _, err := client.Authenticate(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// WithSession opens an authenticated client, runs fn with it and closes the
// client afterwards, whether fn fails or not.
func WithSession(ctx context.Context, cfg Config, logger zerolog.Logger, fn func(*Client) error, opts ...Option) error {
	client, err := Open(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(client)
}

// BaseURL returns the normalized base URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases the transport connections and drops the session. It is
// safe to call more than once; every call made afterwards fails with
// ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	c.authenticated = false
	c.mu.Unlock()

	c.httpClient.CloseIdleConnections()
	c.logger.Debug().Msg("Closed Zymmr client")
	return nil
}

func (c *Client) checkClosed() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return nil
}

// request describes one HTTP call. It is rebuilt into an *http.Request on
// every attempt so bodies can be replayed.
type request struct {
	method string
	path   string
	query  url.Values
	json   any        // JSON body
	form   url.Values // form body, used by login
	login  bool
}

// call performs an authenticated data call, logging in first if needed and
// replaying the call once after a transparent re-login when the session expired.
func (c *Client) call(ctx context.Context, req *request, out any) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	gen, err := c.ensureAuthenticated(ctx)
	if err != nil {
		return err
	}

	resp, err := c.execute(ctx, req)
	if isSessionExpired(err) {
		c.logger.Debug().Str("path", req.path).Msg("Zymmr session expired, logging in again")
		if err := c.reauthenticate(ctx, gen); err != nil {
			return err
		}
		resp, err = c.execute(ctx, req)
	}
	if err != nil {
		return err
	}

	return resp.decode(out)
}

// response is the successful outcome of one request
type response struct {
	body      []byte
	status    int
	requestID string
}

// execute runs a request under the retry policy. The returned error is
// always an *APIError.
func (c *Client) execute(ctx context.Context, req *request) (*response, error) {
	requestID := uuid.NewString()

	var resp *response
	attempt := 0
	err := c.retry(ctx, func(ctx context.Context) error {
		attempt++
		var err error
		resp, err = c.roundTrip(ctx, req, requestID, attempt)
		return err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		// Context cancelled between attempts.
		return nil, newTransportError(err, requestID)
	}

	return resp, nil
}

// roundTrip performs a single attempt.
func (c *Client) roundTrip(ctx context.Context, req *request, requestID string, attempt int) (*response, error) {
	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		bodyReader = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.json != nil:
		data, err := json.Marshal(req.json)
		if err != nil {
			return nil, &APIError{
				Kind:      KindValidation,
				Message:   "failed to marshal request body",
				RequestID: requestID,
				Err:       err,
			}
		}
		bodyReader = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, bodyReader)
	if err != nil {
		return nil, &APIError{
			Kind:      KindValidation,
			Message:   "failed to create request",
			RequestID: requestID,
			Err:       err,
		}
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.opts.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Str("request_id", requestID).
		Int("attempt", attempt).
		Msg("Making Zymmr API request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newTransportError(err, requestID)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, newTransportError(fmt.Errorf("failed to read response body: %w", err), requestID)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(resp.StatusCode, body, requestID, req.login)
	}

	return &response{body: body, status: resp.StatusCode, requestID: requestID}, nil
}

// newTransportError wraps a transport failure as a connection error.
func newTransportError(err error, requestID string) *APIError {
	apiErr := &APIError{
		Kind:      KindConnection,
		RequestID: requestID,
		Err:       err,
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		apiErr.Timeout = true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		apiErr.Timeout = true
	}

	return apiErr
}

func isSessionExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.SessionExpired
}

// decode unmarshals the response body into out. A nil out skips decoding.
// A body that is not JSON, e.g. a proxy's HTML page, is a server error
// carrying the response status.
func (r *response) decode(out any) error {
	if out == nil || len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return &APIError{
			Kind:       KindServer,
			StatusCode: r.status,
			Message:    "failed to parse response: " + strings.TrimSpace(truncate(string(r.body), 128)),
			RequestID:  r.requestID,
			Err:        err,
		}
	}
	return nil
}

// dataEnvelope is the body of /api/resource responses.
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// messageEnvelope is the body of /api/method responses.
type messageEnvelope[T any] struct {
	Message T `json:"message"`
}
