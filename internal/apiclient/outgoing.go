package apiclient

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/leagueadmin/internal/session"
)

// Access token of the session bound to request context, empty if none
func (c *Client) accessToken(req *http.Request) string {
	store, ok := session.FromContext(req.Context())
	if !ok {
		c.logger.Debug("No session bound to request, sending without credentials", "path", req.URL.Path)
		return ""
	}

	token, ok := store.Session()
	if !ok {
		c.logger.Debug("No session token, sending without credentials", "path", req.URL.Path)
		return ""
	}
	return token
}

func (c *Client) send(req *http.Request, accessToken string) (*http.Response, error) {
	h := req.Header
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	if h.Get("X-Request-ID") == "" {
		h.Set("X-Request-ID", uuid.NewString())
	}

	if accessToken != "" {
		h.Set("Authorization", "Bearer "+accessToken)
	} else {
		h.Del("Authorization")
	}

	return c.client.Do(req)
}
