package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
	"github.com/nkiryanov/leagueadmin/internal/handlers/render"
	"github.com/nkiryanov/leagueadmin/internal/logger"
	"github.com/nkiryanov/leagueadmin/internal/session"
)

type apiClient interface {
	NewRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error)

	// Has to return *apperrors.APIError on any failure
	Do(req *http.Request) (*http.Response, error)
}

const proxyPrefix = "/api/proxy"

// Request headers passed to backend as is
var proxiedHeaders = []string{"Content-Type", "Accept", "Accept-Language", "X-Request-ID"}

// handleProxy forwards request to backend on behalf of the session
// Session is cleared as soon as backend call ends with auth failure
func handleProxy(api apiClient, logger logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Escaped form keeps encoded "/" and "?" inside path segments
		path := strings.TrimPrefix(r.URL.EscapedPath(), proxyPrefix)
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}

		req, err := api.NewRequest(r.Context(), r.Method, path, r.Body)
		if err != nil {
			render.ServiceError(w, "Invalid request path", http.StatusBadRequest)
			return
		}
		for _, name := range proxiedHeaders {
			if v := r.Header.Get(name); v != "" {
				req.Header.Set(name, v)
			}
		}

		resp, err := api.Do(req)
		if err != nil {
			proxyError(w, r, err, logger)
			return
		}
		defer resp.Body.Close() // nolint:errcheck

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.Debug("Proxy response copy interrupted", "path", path, "error", err)
		}
	}
}

func proxyError(w http.ResponseWriter, r *http.Request, err error, logger logger.Logger) {
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		logger.Error("Proxy request failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	switch {
	case apiErr.AuthFailure:
		if store, ok := session.FromContext(r.Context()); ok {
			store.DeleteSession()
		}
		render.AuthError(w)
	case apiErr.Kind == apperrors.KindTimeout:
		render.ServiceError(w, "Backend timed out", http.StatusGatewayTimeout)
	case apiErr.Kind == apperrors.KindNetwork:
		render.ServiceError(w, "Backend unavailable", http.StatusBadGateway)
	default:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(apiErr.Status)
		_, _ = w.Write(apiErr.Body)
	}
}
