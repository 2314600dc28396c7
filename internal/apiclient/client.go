// Package apiclient makes authenticated calls to the REST backend on behalf of the session bound to
// the request context.
//
// Every call gets the session access token. A 401 answer triggers one shared session refresh and
// one retry of the same request. When the session can't be recovered the call fails with
// apperrors.APIError tagged as auth failure and callers are expected to log the user out.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/nkiryanov/leagueadmin/internal/logger"
	"github.com/nkiryanov/leagueadmin/internal/service/refresh"
)

const defaultTimeout = 30 * time.Second

// Paths containing any of these are auth endpoints and never trigger refresh
var defaultAuthPaths = []string{"/auth/"}

// Refresher rotates session tokens, see refresh.Coordinator
type Refresher interface {
	Refresh(ctx context.Context, store refresh.Store) (string, error)
}

type Config struct {
	// Backend origin with optional path prefix, e.g. http://api:8000/api
	BaseURL string

	// Bounds every request, including retried one
	// If not set than default is used
	Timeout time.Duration

	// Path patterns of auth endpoints
	// If not set than default is used
	AuthPaths []string

	// If not set than no-op logger is used
	Logger logger.Logger
}

type Client struct {
	base      *url.URL
	authPaths []string

	client    *http.Client
	refresher Refresher
	logger    logger.Logger
}

func New(cfg Config, refresher Refresher) (*Client, error) {
	if refresher == nil {
		return nil, errors.New("refresher must not be nil")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q. Err: %w", cfg.BaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute http(s) url", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.AuthPaths) == 0 {
		cfg.AuthPaths = defaultAuthPaths
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	return &Client{
		base:      base,
		authPaths: cfg.AuthPaths,
		client:    &http.Client{Timeout: cfg.Timeout},
		refresher: refresher,
		logger:    cfg.Logger.With("component", "apiclient"),
	}, nil
}

// NewRequest builds request to backend
//
// Path is escaped, relative to base url and may carry query string.
// Paths with ".." segments are rejected: requests never leave the base url prefix.
func (c *Client) NewRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q. Err: %w", path, err)
	}
	if ref.Scheme != "" || ref.Host != "" || ref.User != nil {
		return nil, fmt.Errorf("path %q must be relative", path)
	}
	if slices.Contains(strings.Split(ref.Path, "/"), "..") {
		return nil, fmt.Errorf("path %q must not contain parent segments", path)
	}

	u := *c.base
	u.Path = joinPath(c.base.Path, ref.Path)
	u.RawPath = joinPath(c.base.EscapedPath(), ref.EscapedPath())
	u.RawQuery = ref.RawQuery

	return http.NewRequestWithContext(ctx, method, u.String(), body)
}

// Do sends request with session credentials and applies refresh and retry policy
//
// Returns response for any status below 400. Caller must close its body.
// Every failure is *apperrors.APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := replayableBody(req); err != nil {
		return nil, err
	}

	resp, err := c.send(req, c.accessToken(req))
	if err != nil {
		return nil, c.networkError(req, err)
	}

	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	return c.handleFailure(req, resp)
}

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, in any, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) PutJSON(ctx context.Context, path string, in any, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, in, out)
}

func (c *Client) PatchJSON(ctx context.Context, path string, in any, out any) error {
	return c.doJSON(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method string, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
	}
	return nil
}

func joinPath(base string, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Body is read once and kept so the request can be sent again after refresh
func replayableBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.ContentLength = int64(len(data))
	return nil
}
