package apiclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
	"github.com/nkiryanov/leagueadmin/internal/session"
)

// Error bodies are kept for callers, but never more than this
const maxErrorBody = 1 << 20

type retryKey struct{}

// WithRetryMarker marks request context as already retried after refresh
func WithRetryMarker(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryKey{}, true)
}

// HasRetryMarker reports whether request was already retried after refresh
func HasRetryMarker(ctx context.Context) bool {
	v, _ := ctx.Value(retryKey{}).(bool)
	return v
}

func (c *Client) handleFailure(req *http.Request, resp *http.Response) (*http.Response, error) {
	apiErr := c.apiError(req, resp)

	switch resp.StatusCode {
	case http.StatusForbidden:
		return nil, apiErr

	case http.StatusUnauthorized:
		store, ok := session.FromContext(req.Context())
		if !ok || HasRetryMarker(req.Context()) || c.isAuthPath(req.URL.Path) {
			return nil, apiErr
		}
		return c.refreshAndRetry(req, store, apiErr)

	default:
		return nil, apiErr
	}
}

func (c *Client) refreshAndRetry(req *http.Request, store *session.Store, unauthorized *apperrors.APIError) (*http.Response, error) {
	ctx := WithRetryMarker(req.Context())

	c.logger.Debug("Backend answered 401, refreshing session", "method", req.Method, "path", req.URL.Path)

	token, err := c.refresher.Refresh(ctx, store)
	if err != nil {
		c.logger.Info("Session refresh failed, clearing session", "path", req.URL.Path, "error", err)
		store.DeleteSession()

		unauthorized.AuthFailure = true
		unauthorized.Err = err
		return nil, unauthorized
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, c.networkError(req, err)
		}
		retry.Body = body
	}

	resp, err := c.send(retry, token)
	if err != nil {
		return nil, c.networkError(retry, err)
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	return c.handleFailure(retry, resp)
}

// Builds error for answer with status >= 400, response body is consumed and closed
func (c *Client) apiError(req *http.Request, resp *http.Response) *apperrors.APIError {
	defer resp.Body.Close() // nolint:errcheck
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &apperrors.APIError{
		Status: resp.StatusCode,
		Method: req.Method,
		Path:   req.URL.Path,
		Body:   body,
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		apiErr.Kind = apperrors.KindForbidden
		apiErr.AuthFailure = true
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr.Kind = apperrors.KindUnauthorized
		// Invalid credentials on auth endpoint is not a broken session
		apiErr.AuthFailure = !c.isAuthPath(req.URL.Path)
	case resp.StatusCode >= http.StatusInternalServerError:
		apiErr.Kind = apperrors.KindServer
	default:
		apiErr.Kind = apperrors.KindClient
	}

	return apiErr
}

// No answer received: session stays as is
func (c *Client) networkError(req *http.Request, err error) *apperrors.APIError {
	kind := apperrors.KindNetwork

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) && netErr.Timeout() {
		kind = apperrors.KindTimeout
	}

	c.logger.Warn("Backend request failed", "method", req.Method, "path", req.URL.Path, "kind", kind, "error", err)

	return &apperrors.APIError{
		Kind:   kind,
		Method: req.Method,
		Path:   req.URL.Path,
		Err:    err,
	}
}

func (c *Client) isAuthPath(path string) bool {
	for _, p := range c.authPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}
