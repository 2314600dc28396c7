package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
	"github.com/nkiryanov/leagueadmin/internal/handlers/render"
	"github.com/nkiryanov/leagueadmin/internal/logger"
	"github.com/nkiryanov/leagueadmin/internal/models"
	"github.com/nkiryanov/leagueadmin/internal/session"
)

type authBackend interface {
	// Has to return apperrors.ErrInvalidCredentials if backend refused credentials
	Login(ctx context.Context, creds models.Credentials) (models.TokenPair, error)

	// Revoke tokens on backend, result may be ignored
	Logout(ctx context.Context, access string, refresh string) error
}

type pairRefresher interface {
	// Rotate tokens using refresh token, concurrent calls with the same token share one backend call
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)
}

// Locales app pages are served in
type Locales struct {
	Supported []string
	Default   string
}

// Returns locale if supported, default locale otherwise
func (l Locales) resolve(locale string) string {
	if slices.Contains(l.Supported, locale) {
		return locale
	}
	return l.Default
}

type AuthHandler struct {
	backend   authBackend
	refresher pairRefresher
	locales   Locales
	logger    logger.Logger
}

func NewAuth(backend authBackend, refresher pairRefresher, locales Locales, l logger.Logger) *AuthHandler {
	return &AuthHandler{
		backend:   backend,
		refresher: refresher,
		locales:   locales,
		logger:    l.With("handler", "auth"),
	}
}

// Handler serves auth endpoints, session store has to be bound to request context
func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /logout", h.logout)
	mux.HandleFunc("GET /session", h.session)
	mux.HandleFunc("GET /refresh", h.refresh)

	return mux
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type LoginSuccessResponse struct {
		Message string `json:"message"`
	}

	store, ok := session.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.backend.Login(r.Context(), models.Credentials{Email: data.Email, Password: data.Password})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
		default:
			h.logger.Error("Login failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	if err := errors.Join(store.SaveSession(pair.Access), store.SaveRefreshToken(pair.Refresh)); err != nil {
		h.logger.Error("Session not saved after login", "error", err)
		store.DeleteSession()
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, LoginSuccessResponse{Message: "Logged in successfully"})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutSuccessResponse struct {
		Message string `json:"message"`
	}

	store, ok := session.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	access, _ := store.Session()
	if refresh, ok := store.RefreshToken(); ok {
		if err := h.backend.Logout(r.Context(), access, refresh); err != nil {
			h.logger.Info("Backend logout failed, clearing session anyway", "error", err)
		}
	}

	store.DeleteSession()
	render.JSON(w, LogoutSuccessResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) {
	type SessionResponse struct {
		Authenticated bool   `json:"authenticated"`
		ExpiresAt     *int64 `json:"expiresAt"`
	}

	store, ok := session.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := SessionResponse{Authenticated: store.HasValidSession()}
	if exp, ok := store.Expiry(); ok && resp.Authenticated {
		unix := exp.Unix()
		resp.ExpiresAt = &unix
	}

	render.JSON(w, resp)
}

// refresh is the entry point for pages that can't write cookies themselves
// It always answers with redirect: to the requested page on success, to login page otherwise
func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshQuery struct {
		Redirect string `json:"redirect" validate:"localpath"`
		Locale   string `json:"locale"`
	}

	query := RefreshQuery{
		Redirect: r.URL.Query().Get("redirect"),
		Locale:   r.URL.Query().Get("locale"),
	}

	locale := h.locales.resolve(query.Locale)
	loginURL := "/" + locale + "/login"

	redirect := query.Redirect
	if err := render.Validate(query); err != nil {
		redirect = "/" + locale
	}

	store, ok := session.FromContext(r.Context())
	if !ok {
		render.Redirect(w, loginURL)
		return
	}

	refresh, ok := store.RefreshToken()
	if !ok {
		store.DeleteSession()
		render.Redirect(w, loginURL)
		return
	}

	pair, err := h.refresher.RefreshPair(r.Context(), refresh)
	if err != nil {
		h.logger.Info("Session refresh failed, redirecting to login", "error", err)
		store.DeleteSession()
		render.Redirect(w, loginURL)
		return
	}

	if err := errors.Join(store.SaveSession(pair.Access), store.SaveRefreshToken(pair.Refresh)); err != nil {
		h.logger.Error("Refreshed session not saved", "error", err)
		store.DeleteSession()
		render.Redirect(w, loginURL)
		return
	}

	render.Redirect(w, redirect)
}
