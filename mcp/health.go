package mcp

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/sethvargo/go-retry"
)

// HealthURL returns the health endpoint that belongs to an MCP endpoint.
func HealthURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrapf(relay.ErrValidation, "tool host url %q: %v", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Wrapf(relay.ErrValidation, "tool host url %q: missing scheme or host", endpoint)
	}
	u.Path = HealthPath
	u.RawQuery = ""
	return u.String(), nil
}

// WaitHealthy polls healthURL with exponential backoff until it answers
// 200 or timeout elapses. It is an explicit startup wait for a tool host that
// is still coming up; connection errors during a turn are never retried.
func WaitHealthy(ctx context.Context, client *http.Client, healthURL string, timeout time.Duration) error {
	if client == nil {
		client = http.DefaultClient
	}
	b := retry.NewExponential(100 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxDuration(timeout, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return retry.RetryableError(errors.Newf("status %d", resp.StatusCode))
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Mark(errors.Wrapf(err, "tool host not healthy after %s", timeout), relay.ErrConnection)
	}
	return nil
}
