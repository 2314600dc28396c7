package backend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
	"github.com/nkiryanov/leagueadmin/internal/models"
	"github.com/nkiryanov/leagueadmin/internal/testutil"
)

func TestClient_Refresh(t *testing.T) {
	t.Run("rotates pair", func(t *testing.T) {
		b := testutil.StartBackend(t)
		old := b.Issue("admin")
		c := NewClient(b.URL, time.Second, nil)

		pair, err := c.Refresh(t.Context(), old.Refresh)

		require.NoError(t, err)
		require.Equal(t, b.Pair(), pair)
		require.NotEqual(t, old.Refresh, pair.Refresh, "refresh token must rotate")
		require.EqualValues(t, 1, b.RefreshCalls.Load())
	})

	t.Run("rejected token", func(t *testing.T) {
		b := testutil.StartBackend(t)
		b.Issue("admin")
		c := NewClient(b.URL, time.Second, nil)

		_, err := c.Refresh(t.Context(), "unknown")

		require.ErrorIs(t, err, apperrors.ErrRefreshRejected)
	})

	t.Run("used token can't be replayed", func(t *testing.T) {
		b := testutil.StartBackend(t)
		old := b.Issue("admin")
		c := NewClient(b.URL, time.Second, nil)

		_, err := c.Refresh(t.Context(), old.Refresh)
		require.NoError(t, err)

		_, err = c.Refresh(t.Context(), old.Refresh)
		require.ErrorIs(t, err, apperrors.ErrRefreshRejected)
	})

	t.Run("bad request is rejection", func(t *testing.T) {
		b := testutil.StartBackend(t)
		pair := b.Issue("admin")
		b.SetRefreshStatus(http.StatusBadRequest)
		c := NewClient(b.URL, time.Second, nil)

		_, err := c.Refresh(t.Context(), pair.Refresh)

		require.ErrorIs(t, err, apperrors.ErrRefreshRejected)
	})

	t.Run("answer without tokens is rejection", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"empty object", `{}`},
			{"no refresh", `{"tokens":{"accessToken":"a"}}`},
			{"not json", `tokens`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(tt.body))
				}))
				defer srv.Close()

				_, err := NewClient(srv.URL, time.Second, nil).Refresh(t.Context(), "r")

				require.ErrorIs(t, err, apperrors.ErrRefreshRejected)
			})
		}
	})

	t.Run("request shape", func(t *testing.T) {
		var got struct {
			method, path, contentType, requestID string
			body                                 refreshRequest
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.method, got.path = r.Method, r.URL.Path
			got.contentType = r.Header.Get("Content-Type")
			got.requestID = r.Header.Get("X-Request-ID")
			_ = json.NewDecoder(r.Body).Decode(&got.body)
			_, _ = w.Write([]byte(`{"tokens":{"accessToken":"a","refreshToken":"r2"}}`))
		}))
		defer srv.Close()

		pair, err := NewClient(srv.URL+"/", time.Second, nil).Refresh(t.Context(), "r1")

		require.NoError(t, err)
		require.Equal(t, models.TokenPair{Access: "a", Refresh: "r2"}, pair)
		require.Equal(t, http.MethodPost, got.method)
		require.Equal(t, "/auth/refresh", got.path)
		require.Equal(t, "application/json", got.contentType)
		require.NoError(t, uuid.Validate(got.requestID), "request id should be uuid")
		require.Equal(t, "r1", got.body.RefreshToken)
	})

	t.Run("network failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := NewClient(srv.URL, time.Second, nil).Refresh(t.Context(), "r")

		require.Error(t, err)
		require.NotErrorIs(t, err, apperrors.ErrRefreshRejected)
	})

	t.Run("timeout", func(t *testing.T) {
		b := testutil.StartBackend(t)
		pair := b.Issue("admin")
		b.SetRefreshDelay(200 * time.Millisecond)

		_, err := NewClient(b.URL, 20*time.Millisecond, nil).Refresh(t.Context(), pair.Refresh)

		require.Error(t, err)
	})
}

func TestClient_Login(t *testing.T) {
	b := testutil.StartBackend(t)
	b.AddUser("admin@example.com", "secret")
	c := NewClient(b.URL, time.Second, nil)

	t.Run("valid credentials", func(t *testing.T) {
		pair, err := c.Login(t.Context(), models.Credentials{Email: "admin@example.com", Password: "secret"})

		require.NoError(t, err)
		require.Equal(t, b.Pair(), pair)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		_, err := c.Login(t.Context(), models.Credentials{Email: "admin@example.com", Password: "wrong"})

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("server failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, time.Second, nil).Login(t.Context(), models.Credentials{Email: "a", Password: "b"})

		require.Error(t, err)
		require.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})
}

func TestClient_Logout(t *testing.T) {
	t.Run("sends tokens", func(t *testing.T) {
		var auth string
		var body refreshRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, time.Second, nil).Logout(t.Context(), "access", "refresh")

		require.NoError(t, err)
		require.Equal(t, "Bearer access", auth)
		require.Equal(t, "refresh", body.RefreshToken)
	})

	t.Run("backend revokes pair", func(t *testing.T) {
		b := testutil.StartBackend(t)
		pair := b.Issue("admin")
		c := NewClient(b.URL, time.Second, nil)

		require.NoError(t, c.Logout(t.Context(), pair.Access, pair.Refresh))

		_, err := c.Refresh(t.Context(), pair.Refresh)
		require.ErrorIs(t, err, apperrors.ErrRefreshRejected)
		require.EqualValues(t, 1, b.LogoutCalls.Load())
	})

	t.Run("failure reported", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, time.Second, nil).Logout(t.Context(), "a", "r")

		require.Error(t, err)
	})
}
