// Package fetch performs the polite HTTP GETs shared by the source adapters.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxBodyBytes = 10 << 20

// Error is a per-item fetch failure: network error, timeout or non-2xx
// status. It never aborts a run.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is, or wraps, a fetch Error.
func IsFetchError(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// Client issues GETs with a fixed user agent and per-request timeout, and
// spaces consecutive requests by a politeness delay.
type Client struct {
	userAgent string
	delay     time.Duration
	client    *http.Client
	last      time.Time
}

// NewClient creates a new fetch client.
func NewClient(userAgent string, timeout, delay time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		userAgent: userAgent,
		delay:     delay,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Get returns the body of url. Failures are returned as *Error.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer func() { c.last = time.Now() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	return body, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.delay <= 0 || c.last.IsZero() {
		return nil
	}
	remaining := c.delay - time.Since(c.last)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
