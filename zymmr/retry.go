package zymmr

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// jitterPercent randomizes each retry delay by up to this share.
const jitterPercent = 10

// backoff builds the delay schedule for one logical operation. Backoff values
// are stateful and must not be shared between operations.
func (c *Client) backoff() retry.Backoff {
	b := retry.NewExponential(c.cfg.RetryDelay)
	b = retry.WithJitterPercent(jitterPercent, b)
	if c.cfg.MaxRetryDelay > 0 {
		b = retry.WithCappedDuration(c.cfg.MaxRetryDelay, b)
	}
	return retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1), b)
}

// retry runs fn until it succeeds, fails with a non-transient error or the
// attempt budget is spent. The last error is returned as is.
//
// Inserts are retried like every other call: if the server committed a
// document but the response was lost, the retry creates a second one. The
// Frappe resource API has no idempotency key to prevent this.
func (c *Client) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	attempt := 0

	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}

		// The caller gave up; nothing left to retry for.
		if ctx.Err() != nil || !shouldRetry(err) {
			return err
		}

		if attempt < c.cfg.MaxAttempts {
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", c.cfg.MaxAttempts).
				Dur("elapsed", time.Since(start)).
				Msg("Zymmr request failed, retrying")
		}

		return retry.RetryableError(err)
	})
}

// shouldRetry reports whether err is transient: transport failures and
// server-side 5xx/429 responses. Authentication, permission, validation and
// not-found failures are deterministic.
func shouldRetry(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Kind {
	case KindConnection, KindServer:
		return true
	default:
		return false
	}
}
