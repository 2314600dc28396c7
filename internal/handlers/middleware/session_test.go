package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
	"github.com/nkiryanov/leagueadmin/internal/session"
	"github.com/nkiryanov/leagueadmin/internal/tokencipher"
)

func newManager(t *testing.T, cfg session.Config) *session.Manager {
	t.Helper()

	c, err := tokencipher.New("test-secret")
	require.NoError(t, err)
	m, err := session.NewManager(cfg, c)
	require.NoError(t, err)
	return m
}

func TestSessionMiddleware(t *testing.T) {
	m := newManager(t, session.Config{})

	t.Run("binds writable store", func(t *testing.T) {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, ok := session.FromContext(r.Context())
			require.True(t, ok, "store should be bound to context")

			require.NoError(t, store.SaveRefreshToken("refresh"))
			w.WriteHeader(http.StatusNoContent)
		})

		rec := httptest.NewRecorder()
		SessionMiddleware(m)(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, rec.Result().Cookies(), 1)
		require.Equal(t, session.RefreshCookie, rec.Result().Cookies()[0].Name)
	})

	t.Run("store read only once response started", func(t *testing.T) {
		var saveErr error
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("streaming"))

			store, _ := session.FromContext(r.Context())
			saveErr = store.SaveRefreshToken("refresh")
		})

		rec := httptest.NewRecorder()
		SessionMiddleware(m)(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.ErrorIs(t, saveErr, apperrors.ErrCookiesReadOnly)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("read only store for rendering", func(t *testing.T) {
		seed := httptest.NewRecorder()
		require.NoError(t, m.Store(session.NewResponseJar(seed, httptest.NewRequest(http.MethodGet, "/", nil))).SaveRefreshToken("refresh"))

		var (
			saveErr error
			got     string
		)
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, ok := session.FromContext(r.Context())
			require.True(t, ok)

			got, _ = store.RefreshToken()
			saveErr = store.SaveSession("access")
			store.DeleteSession()
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/en/players", nil)
		for _, c := range seed.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		SessionMiddleware(m)(ReadOnlySession(m)(h)).ServeHTTP(rec, req)

		require.Equal(t, "refresh", got, "cookies are readable")
		require.ErrorIs(t, saveErr, apperrors.ErrCookiesReadOnly)
		require.Empty(t, rec.Result().Cookies(), "render path never writes cookies")
	})
}
