package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/leagueadmin/internal/models"
)

// Key fake backend signs access tokens with
const SigningKey = "fake-backend-signing-key"

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

// Sign JWT access token like backend does
func MustMintAccessToken(subject string, expiresAt time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString([]byte(SigningKey))
	if err != nil {
		panic(err)
	}
	return signed
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Backend fakes REST backend the admin app talks to
//
// Auth endpoints live under /auth/. Any other path is a protected resource:
// it requires the current access token and echoes the request back as JSON.
// "/forbidden" answers 403, "/broken" answers 500.
type Backend struct {
	URL    string
	Server *httptest.Server

	RefreshCalls atomic.Int32
	LoginCalls   atomic.Int32
	LogoutCalls  atomic.Int32

	mu            sync.Mutex
	pair          models.TokenPair
	passwords     map[string]string
	refreshDelay  time.Duration
	refreshStatus int
	accessTTL     time.Duration
	seenAuth      []string
}

// Echo is body of protected resource response
type Echo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  string `json:"query"`
	Body   string `json:"body"`
	Auth   string `json:"auth"`
}

// Start fake backend, stopped on test cleanup
func StartBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{passwords: map[string]string{}, accessTTL: 15 * time.Minute}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /auth/logout", b.handleLogout)
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "broken"})
	})
	mux.HandleFunc("/", b.handleResource)

	b.Server = httptest.NewServer(mux)
	b.URL = b.Server.URL
	t.Cleanup(b.Server.Close)

	return b
}

// Issue new valid token pair for subject, previous pair stops working
func (b *Backend) Issue(subject string) models.TokenPair {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pair = models.TokenPair{
		Access:  MustMintAccessToken(subject, time.Now().Add(15*time.Minute)),
		Refresh: randomToken(),
	}
	return b.pair
}

// Current valid token pair
func (b *Backend) Pair() models.TokenPair {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pair
}

// Register admin who can log in
func (b *Backend) AddUser(email string, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passwords[email] = password
}

// Make refresh slow, so concurrent callers pile up
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshDelay = d
}

// Lifetime of access tokens issued by refresh, negative issues already expired tokens
func (b *Backend) SetAccessTTL(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessTTL = d
}

// Make refresh endpoint answer with status, zero restores normal behavior
func (b *Backend) SetRefreshStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshStatus = status
}

// Expire current access token, refresh token stays valid
func (b *Backend) ExpireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pair.Access = "expired-" + randomToken()
}

// Authorization headers seen by protected resources
func (b *Backend) SeenAuth() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seenAuth...)
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.RefreshCalls.Add(1)

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	delay, status := b.refreshDelay, b.refreshStatus
	b.mu.Unlock()

	time.Sleep(delay)

	if status != 0 {
		writeJSON(w, status, map[string]string{"message": "refresh failed"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if body.RefreshToken == "" || body.RefreshToken != b.pair.Refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid refresh token"})
		return
	}

	b.pair = models.TokenPair{
		Access:  MustMintAccessToken("admin", time.Now().Add(b.accessTTL)),
		Refresh: randomToken(),
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": b.pair})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.LoginCalls.Add(1)

	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	password, ok := b.passwords[creds.Email]
	b.mu.Unlock()

	if !ok || password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tokens": b.Issue(creds.Email)})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.LogoutCalls.Add(1)

	b.mu.Lock()
	b.pair = models.TokenPair{}
	b.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleResource(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")

	b.mu.Lock()
	b.seenAuth = append(b.seenAuth, auth)
	valid := b.pair.Access != "" && auth == "Bearer "+b.pair.Access
	b.mu.Unlock()

	if !valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}

	body, _ := io.ReadAll(r.Body)
	writeJSON(w, http.StatusOK, Echo{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   string(body),
		Auth:   strings.TrimPrefix(auth, "Bearer "),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
