package zymmr

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Frappe method endpoints used for session handling
const (
	loginPath      = "/api/method/login"
	logoutPath     = "/api/method/logout"
	loggedUserPath = "/api/method/frappe.auth.get_logged_user"
)

// AuthResult describes a successful login
type AuthResult struct {
	User     string
	FullName string
	HomePage string
	Message  string
}

type loginResponse struct {
	Message  string `json:"message"`
	FullName string `json:"full_name"`
	HomePage string `json:"home_page"`
}

// successful login messages; "No App" is returned for users without a desk home page
var loginMessages = map[string]bool{
	"Logged In": true,
	"No App":    true,
}

// Authenticate logs in with the configured credentials. The session cookie
// returned by the server is kept for all further calls.
func (c *Client) Authenticate(ctx context.Context) (*AuthResult, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.login(ctx)
}

// IsAuthenticated reports whether the client currently holds a session
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// login performs the login handshake. c.mu must be held.
func (c *Client) login(ctx context.Context) (*AuthResult, error) {
	// Close may have run while the caller waited for c.mu.
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	c.authenticated = false

	result, err := c.execute(ctx, &request{
		method: http.MethodPost,
		path:   loginPath,
		form: url.Values{
			"usr": {c.cfg.Username},
			"pwd": {c.cfg.Password},
		},
		login: true,
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("user", c.cfg.Username).Msg("Zymmr login failed")
		return nil, err
	}

	var resp loginResponse
	if err := result.decode(&resp); err != nil {
		return nil, err
	}

	if !loginMessages[resp.Message] {
		return nil, &APIError{
			Kind:       KindAuthentication,
			StatusCode: result.status,
			Message:    "unexpected login response: " + truncate(resp.Message, 128),
			RequestID:  result.requestID,
		}
	}

	c.authenticated = true
	c.generation++

	c.logger.Debug().
		Str("user", c.cfg.Username).
		Uint64("generation", c.generation).
		Msg("Logged in to Zymmr")

	return &AuthResult{
		User:     c.cfg.Username,
		FullName: resp.FullName,
		HomePage: resp.HomePage,
		Message:  resp.Message,
	}, nil
}

// ensureAuthenticated logs in when no session exists and returns the session
// generation the caller is working with.
func (c *Client) ensureAuthenticated(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated {
		return c.generation, nil
	}

	if !c.cfg.AutoLogin {
		return 0, &APIError{
			Kind:    KindAuthentication,
			Message: "not authenticated and auto-login is disabled",
		}
	}

	if _, err := c.login(ctx); err != nil {
		return 0, err
	}
	return c.generation, nil
}

// reauthenticate replaces an expired session. If another goroutine already
// logged in again since gen was observed, its session is reused.
func (c *Client) reauthenticate(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated && c.generation != gen {
		return nil
	}

	_, err := c.login(ctx)
	return err
}

// Logout ends the server-side session. The client stays usable; with
// AutoLogin the next data call logs in again.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.authenticated {
		return nil
	}

	_, err := c.execute(ctx, &request{method: http.MethodPost, path: logoutPath})
	c.authenticated = false
	if err != nil && !isSessionExpired(err) {
		return err
	}

	c.logger.Debug().Str("user", c.cfg.Username).Msg("Logged out of Zymmr")
	return nil
}

// Ping checks that the session works. Authentication and connection failures
// are reported as false; any other failure is returned as an error.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	_, err := c.loggedUser(ctx)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrConnection) {
		c.logger.Debug().Err(err).Msg("Zymmr ping failed")
		return false, nil
	}
	return false, err
}

// UserInfo returns the User document of the logged-in user.
func (c *Client) UserInfo(ctx context.Context) (Document, error) {
	user, err := c.loggedUser(ctx)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, DocTypeUser, user)
}

func (c *Client) loggedUser(ctx context.Context) (string, error) {
	var resp messageEnvelope[string]
	if err := c.call(ctx, &request{method: http.MethodGet, path: loggedUserPath}, &resp); err != nil {
		return "", err
	}
	if resp.Message == "" || resp.Message == "Guest" {
		return "", &APIError{
			Kind:    KindAuthentication,
			Message: "session is not logged in",
		}
	}
	return resp.Message, nil
}
