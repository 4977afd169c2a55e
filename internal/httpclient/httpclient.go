// Package httpclient is the JSON-over-HTTP helper shared by the collaborator
// adapters: bounded exponential backoff, 5xx and 429 retried, other 4xx
// returned at once.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	HTTP       *http.Client
	MaxElapsed time.Duration
}

func New(timeout, maxElapsed time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}, MaxElapsed: maxElapsed}
}

// DoJSON sends the request built by newReq and decodes the JSON body into
// target. newReq runs once per attempt so request bodies can be replayed.
func (c *Client) DoJSON(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error), target any) error {
	body, err := c.Do(ctx, newReq)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("json decode error: %v body=%s", err, truncate(body))
	}
	return nil
}

// Do returns the body of the first 2xx response.
func (c *Client) Do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.MaxElapsed

	var (
		out     []byte
		lastErr error
	)
	op := func() error {
		req, err := newReq(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = err
			return err
		}
		if resp.StatusCode >= 300 {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				// Permanent: don't retry on client errors
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}
		out = body
		lastErr = nil
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return out, nil
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
