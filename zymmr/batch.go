package zymmr

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one item of a batch operation
type BatchResult struct {
	Name     string
	Document Document // nil for deletes and failures
	Err      error
}

// BatchSummary collects the results of a batch operation in input order
type BatchSummary struct {
	Results []BatchResult
}

// Failed returns the results that carry an error
func (s BatchSummary) Failed() []BatchResult {
	var failed []BatchResult
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Succeeded returns the number of items that completed without error
func (s BatchSummary) Succeeded() int {
	return len(s.Results) - len(s.Failed())
}

// Err returns an error describing the first failure, or nil
func (s BatchSummary) Err() error {
	failed := s.Failed()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d items failed, first %s: %w", len(failed), len(s.Results), failed[0].Name, failed[0].Err)
}

// BatchGet fetches several documents concurrently. A failing item does not
// stop the others.
func (c *Client) BatchGet(ctx context.Context, doctype string, names []string, fields ...string) BatchSummary {
	return c.batch(ctx, names, func(ctx context.Context, name string) (Document, error) {
		return c.Get(ctx, doctype, name, fields...)
	})
}

// BatchDelete deletes several documents concurrently. A failing item does not
// stop the others.
func (c *Client) BatchDelete(ctx context.Context, doctype string, names []string) BatchSummary {
	return c.batch(ctx, names, func(ctx context.Context, name string) (Document, error) {
		return nil, c.Delete(ctx, doctype, name)
	})
}

func (c *Client) batch(ctx context.Context, names []string, fn func(context.Context, string) (Document, error)) BatchSummary {
	summary := BatchSummary{Results: make([]BatchResult, len(names))}
	if len(names) == 0 {
		return summary
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.concurrency)

	for i, name := range names {
		g.Go(func() error {
			doc, err := fn(ctx, name)
			// Each goroutine owns its slot.
			summary.Results[i] = BatchResult{Name: name, Document: doc, Err: err}
			if err != nil {
				c.logger.Warn().Err(err).Str("name", name).Msg("Batch item failed")
			}
			return nil
		})
	}

	g.Wait()
	return summary
}
