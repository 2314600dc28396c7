package middleware

import (
	"net/http"

	"github.com/nkiryanov/leagueadmin/internal/session"
)

type sessionManager interface {
	Store(jar session.Jar) *session.Store
}

// SessionMiddleware binds session store of the request to its context
// Handlers get writer that tells the store when cookies can't be written anymore
func SessionMiddleware(sm sessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jar := session.NewResponseJar(w, r)
			ctx := session.NewContext(r.Context(), sm.Store(jar))

			next.ServeHTTP(jar.Writer(), r.WithContext(ctx))
		})
	}
}

// ReadOnlySession rebinds session store for handlers that only render output
// Their store fails every write with apperrors.ErrCookiesReadOnly, cookie rotation belongs to refresh handler
func ReadOnlySession(sm sessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := session.NewContext(r.Context(), sm.Store(session.NewReadOnlyJar(r)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
