package session

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
)

// Jar is the cookie capability of the current execution context
// Set may fail with apperrors.ErrCookiesReadOnly when the context can't write cookies
type Jar interface {
	Get(name string) (string, bool)
	Set(c *http.Cookie) error
}

// RequestJar reads cookies of incoming request and writes Set-Cookie headers to response
//
// Values written during the request are remembered, so later reads in the same request see them.
// Deleted cookies (negative MaxAge) are remembered even if the header can't be written anymore.
type RequestJar struct {
	mu      sync.Mutex
	r       *http.Request
	w       *commitWriter // nil if jar is read only
	overlay map[string]*string
}

// NewResponseJar creates jar that is writable until response headers are sent
// Handlers must write response through jar.Writer(), otherwise jar can't tell headers are sent
func NewResponseJar(w http.ResponseWriter, r *http.Request) *RequestJar {
	return &RequestJar{
		r:       r,
		w:       &commitWriter{ResponseWriter: w},
		overlay: make(map[string]*string),
	}
}

// NewReadOnlyJar creates jar for contexts that only render output, see middleware.ReadOnlySession
func NewReadOnlyJar(r *http.Request) *RequestJar {
	return &RequestJar{
		r:       r,
		overlay: make(map[string]*string),
	}
}

// Writer returns response writer to use instead of original one
// Read only jar has no writer and returns nil
func (j *RequestJar) Writer() http.ResponseWriter {
	if j.w == nil {
		return nil
	}
	return j.w
}

func (j *RequestJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if value, ok := j.overlay[name]; ok {
		if value == nil {
			return "", false
		}
		return *value, true
	}

	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *RequestJar) Set(c *http.Cookie) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	deleted := c.MaxAge < 0
	if deleted {
		j.overlay[c.Name] = nil
	}

	switch {
	case j.w == nil:
		return fmt.Errorf("%w: read only context, cookie %q", apperrors.ErrCookiesReadOnly, c.Name)
	case j.w.committed.Load():
		return fmt.Errorf("%w: response headers already sent, cookie %q", apperrors.ErrCookiesReadOnly, c.Name)
	}

	http.SetCookie(j.w, c)
	if !deleted {
		value := c.Value
		j.overlay[c.Name] = &value
	}

	return nil
}

// commitWriter notices the moment response headers leave the server
type commitWriter struct {
	http.ResponseWriter
	committed atomic.Bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	w.committed.Store(true)
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(p []byte) (int, error) {
	w.committed.Store(true)
	return w.ResponseWriter.Write(p)
}

func (w *commitWriter) Flush() {
	w.committed.Store(true)
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the original writer
func (w *commitWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
