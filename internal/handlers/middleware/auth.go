package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/nkiryanov/leagueadmin/internal/handlers/render"
	"github.com/nkiryanov/leagueadmin/internal/session"
)

type GuardConfig struct {
	// Locales pages are served in, first path segment of every page
	Locales []string

	// Page that never requires session, "login" by default
	LoginPage string

	// Path of the refresh boundary handler
	RefreshPath string

	// Used in tests to move time, time.Now by default
	Now func() time.Time
}

// AuthGuard protects pages registered with "{locale}" and "{page...}" wildcards
//
// Without session and refresh token the browser goes to login page.
// With refresh token but stale or missing access token it goes through refresh handler,
// which can rotate cookies before the page renders. The expiry marker is a hint only:
// the page still may fail with 401 and end in the same refresh flow.
func AuthGuard(cfg GuardConfig) func(http.Handler) http.Handler {
	if cfg.LoginPage == "" {
		cfg.LoginPage = "login"
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/api/auth/refresh"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := r.PathValue("locale")
			if !slices.Contains(cfg.Locales, locale) {
				http.NotFound(w, r)
				return
			}

			if r.PathValue("page") == cfg.LoginPage {
				next.ServeHTTP(w, r)
				return
			}

			store, ok := session.FromContext(r.Context())
			if !ok {
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			_, hasRefresh := store.RefreshToken()
			hasSession := store.HasValidSession()

			switch {
			case !hasSession && !hasRefresh:
				render.Redirect(w, "/"+locale+"/"+cfg.LoginPage)
			case hasRefresh && (!hasSession || expired(store, cfg.Now())):
				q := url.Values{}
				q.Set("redirect", r.URL.RequestURI())
				q.Set("locale", locale)
				render.Redirect(w, cfg.RefreshPath+"?"+q.Encode())
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func expired(store *session.Store, now time.Time) bool {
	exp, ok := store.Expiry()
	return ok && !now.Before(exp)
}
