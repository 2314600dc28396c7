package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
)

func TestRequestJar(t *testing.T) {
	newRequest := func(cookies ...*http.Cookie) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range cookies {
			r.AddCookie(c)
		}
		return r
	}

	t.Run("get reads request cookies", func(t *testing.T) {
		jar := NewReadOnlyJar(newRequest(&http.Cookie{Name: "a", Value: "1"}))

		value, ok := jar.Get("a")
		require.True(t, ok)
		require.Equal(t, "1", value)

		_, ok = jar.Get("missing")
		require.False(t, ok)
	})

	t.Run("empty cookie is absent", func(t *testing.T) {
		jar := NewReadOnlyJar(newRequest(&http.Cookie{Name: "a", Value: ""}))

		_, ok := jar.Get("a")
		require.False(t, ok)
	})

	t.Run("set writes header and is visible to later reads", func(t *testing.T) {
		rec := httptest.NewRecorder()
		jar := NewResponseJar(rec, newRequest(&http.Cookie{Name: "a", Value: "old"}))

		err := jar.Set(&http.Cookie{Name: "a", Value: "new"})
		require.NoError(t, err)

		value, ok := jar.Get("a")
		require.True(t, ok)
		require.Equal(t, "new", value)
		require.Len(t, rec.Result().Cookies(), 1)
		require.Equal(t, "new", rec.Result().Cookies()[0].Value)
	})

	t.Run("delete hides request cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		jar := NewResponseJar(rec, newRequest(&http.Cookie{Name: "a", Value: "1"}))

		err := jar.Set(&http.Cookie{Name: "a", MaxAge: -1})
		require.NoError(t, err)

		_, ok := jar.Get("a")
		require.False(t, ok)
		require.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
	})

	t.Run("read only jar refuses writes", func(t *testing.T) {
		jar := NewReadOnlyJar(newRequest(&http.Cookie{Name: "a", Value: "1"}))

		err := jar.Set(&http.Cookie{Name: "a", Value: "2"})

		require.ErrorIs(t, err, apperrors.ErrCookiesReadOnly)
		value, _ := jar.Get("a")
		require.Equal(t, "1", value, "failed write must not change what jar reads")
		require.Nil(t, jar.Writer())
	})

	t.Run("read only jar still forgets deleted cookies", func(t *testing.T) {
		jar := NewReadOnlyJar(newRequest(&http.Cookie{Name: "a", Value: "1"}))

		err := jar.Set(&http.Cookie{Name: "a", MaxAge: -1})

		require.ErrorIs(t, err, apperrors.ErrCookiesReadOnly)
		_, ok := jar.Get("a")
		require.False(t, ok)
	})

	t.Run("writes refused after headers sent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		jar := NewResponseJar(rec, newRequest())

		jar.Writer().WriteHeader(http.StatusOK)
		err := jar.Set(&http.Cookie{Name: "a", Value: "1"})

		require.ErrorIs(t, err, apperrors.ErrCookiesReadOnly)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("body write commits headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		jar := NewResponseJar(rec, newRequest())

		_, err := jar.Writer().Write([]byte("hello"))
		require.NoError(t, err)

		err = jar.Set(&http.Cookie{Name: "a", Value: "1"})
		require.ErrorIs(t, err, apperrors.ErrCookiesReadOnly)
	})

	t.Run("writer unwraps to original", func(t *testing.T) {
		rec := httptest.NewRecorder()
		jar := NewResponseJar(rec, newRequest())

		u, ok := jar.Writer().(interface{ Unwrap() http.ResponseWriter })
		require.True(t, ok)
		require.Same(t, rec, u.Unwrap())
	})
}
