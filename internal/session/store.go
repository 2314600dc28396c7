package session

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nkiryanov/leagueadmin/internal/logger"
)

// Cookie names
const (
	SessionCookie = "session"
	RefreshCookie = "refresh_token"
	ExpiryCookie  = "token_exp"
)

const (
	defaultAccessTTL  = 7 * 24 * time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
)

type tokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// Session manager config with sensible defaults
type Config struct {
	// Set Secure flag on cookies
	// Has to be true only when app runs in production behind https
	Secure bool

	// Cookie domain, host-only cookies if empty
	Domain string

	// Cookie lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// If not set than no-op logger is used
	Logger logger.Logger

	// Used in tests to move time, time.Now by default
	Now func() time.Time
}

// Manager keeps settings shared by every session store
type Manager struct {
	cipher tokenCipher
	logger logger.Logger
	now    func() time.Time

	secure     bool
	domain     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg Config, cipher tokenCipher) (*Manager, error) {
	if cipher == nil {
		return nil, errors.New("cipher must not be nil")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTTL)

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		cipher:     cipher,
		logger:     cfg.Logger.With("component", "session"),
		now:        cfg.Now,
		secure:     cfg.Secure,
		domain:     cfg.Domain,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

// Store binds session cookies of one execution context
func (m *Manager) Store(jar Jar) *Store {
	return &Store{m: m, jar: jar}
}

func (m *Manager) cookie(name string, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.domain,
		MaxAge:   int(ttl.Seconds()),
		Expires:  m.now().Add(ttl).UTC(),
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) expiredCookie(name string) *http.Cookie {
	c := m.cookie(name, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

// Store is the session record kept in cookies
//
// Tokens are encrypted; token_exp is plaintext and informational only.
// Storage errors on reads degrade to "no session" and never reach the caller.
type Store struct {
	m   *Manager
	jar Jar
}

// SaveSession encrypts access token and writes it with token_exp marker
// Returns apperrors.ErrCookiesReadOnly if context can't write cookies
func (s *Store) SaveSession(access string) error {
	blob, err := s.m.cipher.Encrypt(access)
	if err != nil {
		return fmt.Errorf("error while encrypting access token. Err: %w", err)
	}

	if err := s.jar.Set(s.m.cookie(SessionCookie, blob, s.m.accessTTL)); err != nil {
		return err
	}

	// The marker is a hint only: if token can't be decoded the stale marker is dropped.
	// Token already expired by our clock gets no marker either, otherwise routing guard
	// would send the browser to refresh again right after this refresh.
	payload, err := DecodePayload(access)
	if err != nil {
		s.m.logger.Debug("access token payload not decoded, expiry marker skipped", "error", err)
		_ = s.jar.Set(s.m.expiredCookie(ExpiryCookie))
		return nil
	}
	if !payload.ExpiresAt.After(s.m.now()) {
		s.m.logger.Info("access token expired on arrival, expiry marker skipped", "expires_at", payload.ExpiresAt)
		_ = s.jar.Set(s.m.expiredCookie(ExpiryCookie))
		return nil
	}

	exp := strconv.FormatInt(payload.ExpiresAt.Unix(), 10)
	if err := s.jar.Set(s.m.cookie(ExpiryCookie, exp, s.m.accessTTL)); err != nil {
		s.m.logger.Debug("expiry marker not saved", "error", err)
	}

	return nil
}

// SaveRefreshToken encrypts refresh token and writes it
// Returns apperrors.ErrCookiesReadOnly if context can't write cookies
func (s *Store) SaveRefreshToken(refresh string) error {
	blob, err := s.m.cipher.Encrypt(refresh)
	if err != nil {
		return fmt.Errorf("error while encrypting refresh token. Err: %w", err)
	}

	return s.jar.Set(s.m.cookie(RefreshCookie, blob, s.m.refreshTTL))
}

// Session returns access token if session cookie exists and decrypts
func (s *Store) Session() (string, bool) {
	return s.read(SessionCookie)
}

// RefreshToken returns refresh token if refresh cookie exists and decrypts
func (s *Store) RefreshToken() (string, bool) {
	return s.read(RefreshCookie)
}

// Expiry returns access token expiration saved in plaintext marker
func (s *Store) Expiry() (time.Time, bool) {
	value, ok := s.jar.Get(ExpiryCookie)
	if !ok {
		return time.Time{}, false
	}

	exp, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.Unix(exp, 0), true
}

// HasValidSession reports whether access token is present
// Expiry marker is not consulted: stale tokens are discovered by backend answering 401
func (s *Store) HasValidSession() bool {
	_, ok := s.Session()
	return ok
}

// DeleteSession clears all session cookies
// It never fails: in read only context cookies are forgotten for the rest of the request
func (s *Store) DeleteSession() {
	for _, name := range []string{SessionCookie, RefreshCookie, ExpiryCookie} {
		if err := s.jar.Set(s.m.expiredCookie(name)); err != nil {
			s.m.logger.Debug("session cookie not cleared in response", "cookie", name, "error", err)
		}
	}
}

func (s *Store) read(name string) (string, bool) {
	blob, ok := s.jar.Get(name)
	if !ok {
		return "", false
	}

	token, err := s.m.cipher.Decrypt(blob)
	if err != nil {
		s.m.logger.Debug("session cookie ignored", "cookie", name, "error", err)
		return "", false
	}

	return token, true
}
