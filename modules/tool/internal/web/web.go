// Package web is the HTTP plumbing shared by lookup tools: outbound URL
// filtering, a bounded body read and retries on throttling.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/security"
	"github.com/flemzord/scout/internal/tool"
)

// UserAgent is sent with every request unless overridden.
const UserAgent = "Mozilla/5.0 (compatible; scout/1.0; +https://github.com/flemzord/scout)"

const (
	defaultTimeout = 15 * time.Second
	defaultMaxBody = 2 << 20
	defaultTries   = 3
)

// ErrStatus is wrapped by *StatusError.
var ErrStatus = errors.New("unexpected HTTP status")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d from %s", ErrStatus, e.Code, e.URL)
}

// Is matches ErrStatus.
func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Client performs filtered HTTP requests for tools. The zero value is not
// usable; call New.
type Client struct {
	HTTP      *http.Client
	Filter    *security.URLFilter
	UserAgent string
	MaxBody   int64
	MaxTries  uint
}

// New returns a Client with the given timeout. A nil filter allows every
// http(s) URL.
func New(filter *security.URLFilter, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		Filter:    filter,
		UserAgent: UserAgent,
		MaxBody:   defaultMaxBody,
		MaxTries:  defaultTries,
	}
}

// Get fetches rawURL with query parameters q appended.
func (c *Client) Get(ctx context.Context, rawURL string, q url.Values) ([]byte, error) {
	if len(q) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + q.Encode()
	}
	return c.do(ctx, http.MethodGet, rawURL, nil, "")
}

// PostForm posts form to rawURL.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, rawURL, []byte(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, contentType string) ([]byte, error) {
	if err := c.Filter.Check(rawURL); err != nil {
		return nil, err
	}

	op := func() ([]byte, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.UserAgent)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck // best-effort close

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			statusErr := &StatusError{Code: resp.StatusCode, URL: rawURL}
			if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
				return nil, backoff.RetryAfter(secs)
			}
			return nil, statusErr
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, backoff.Permanent(&StatusError{Code: resp.StatusCode, URL: rawURL})
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, c.MaxBody))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return data, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(c.MaxTries),
	)
}

// Truncate cuts s to at most n runes. n <= 0 means no limit.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Provision resolves the shared tool registry and URL filter from the
// application context and builds a Client with the given timeout.
func Provision(ctx *core.AppContext, timeout time.Duration) (*tool.Registry, *Client, error) {
	reg, ok := core.Service[*tool.Registry](ctx, tool.RegistryService)
	if !ok {
		return nil, nil, fmt.Errorf("service %q not available", tool.RegistryService)
	}
	filter, _ := core.Service[*security.URLFilter](ctx, security.URLFilterService)
	return reg, New(filter, timeout), nil
}
