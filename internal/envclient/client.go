// Package envclient loads the deployment's environment descriptor through
// the edge and fetches the private document behind a signed link.
package envclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kgellert/nextjs-split-deploy/internal/edge"
	"github.com/kgellert/nextjs-split-deploy/internal/envdoc"
	"github.com/kgellert/nextjs-split-deploy/internal/lib/logger/sl"
)

const (
	descriptorPath = "/" + envdoc.PublicKey

	// defaultFetchTimeout bounds the shared descriptor request, which
	// outlives the caller that started it.
	defaultFetchTimeout = 30 * time.Second
)

var ErrInvalidBaseURL = errors.New("base url must be absolute")

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Op         string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned %d", e.Op, e.URL, e.StatusCode)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithFetchTimeout bounds the shared descriptor request.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) { c.fetchTimeout = d }
}

type descriptorResult struct {
	env   envdoc.Descriptor
	found bool
}

// Client caches the descriptor for its whole lifetime; it is never
// revalidated.
type Client struct {
	base *url.URL
	http *http.Client
	log  *slog.Logger

	group        singleflight.Group
	fetchTimeout time.Duration

	mu     sync.Mutex
	cached *descriptorResult
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("envclient.New: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("envclient.New: %w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  slog.Default(),

		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Descriptor returns env/env.json. A missing document yields the
// placeholder with found=false. Concurrent callers share one request and a
// successful answer is kept for the client's lifetime.
//
// The shared request does not follow any single caller's cancellation;
// each caller stops waiting when its own ctx is done.
func (c *Client) Descriptor(ctx context.Context) (envdoc.Descriptor, bool, error) {
	c.mu.Lock()
	cached := c.cached
	c.mu.Unlock()

	if cached != nil {
		return cached.env, cached.found, nil
	}

	ch := c.group.DoChan(descriptorPath, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		res, err := c.fetchDescriptor(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cached = &res
		c.mu.Unlock()

		return res, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return envdoc.Placeholder(), false, r.Err
		}
		res := r.Val.(descriptorResult)
		return res.env, res.found, nil
	case <-ctx.Done():
		return envdoc.Placeholder(), false, ctx.Err()
	}
}

func (c *Client) fetchDescriptor(ctx context.Context) (descriptorResult, error) {
	const op = "envclient.fetchDescriptor"

	resp, err := c.get(ctx, c.resolve(descriptorPath))
	if err != nil {
		return descriptorResult{}, fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		c.log.Warn("environment descriptor not found", slog.Int("status", resp.StatusCode))
		return descriptorResult{env: envdoc.Placeholder()}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return descriptorResult{}, &StatusError{Op: op, URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	}

	env, err := envdoc.Decode(resp.Body)
	if err != nil {
		return descriptorResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := env.Validate(); err != nil {
		c.log.Warn("environment descriptor is incomplete", slog.String("base_url", env.BaseURL()), sl.Err(err))
	} else {
		c.log.Debug("environment descriptor loaded", slog.String("base_url", env.BaseURL()))
	}

	return descriptorResult{env: env, found: true}, nil
}

func (c *Client) resolve(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}

// presignURL is the link-issuance endpoint, always reached through the edge.
func (c *Client) presignURL() string {
	return c.resolve(edge.PresignPath)
}
