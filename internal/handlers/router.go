package handlers

import (
	"net/http"

	"github.com/nkiryanov/leagueadmin/internal/handlers/middleware"
	"github.com/nkiryanov/leagueadmin/internal/handlers/render"
	"github.com/nkiryanov/leagueadmin/internal/logger"
	"github.com/nkiryanov/leagueadmin/internal/session"
)

const refreshPath = "/api/auth/refresh"

var proxyMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type sessionManager interface {
	Store(jar session.Jar) *session.Store
}

func NewRouter(
	sessions sessionManager,
	backend authBackend,
	refresher pairRefresher,
	api apiClient,
	locales Locales,
	logger logger.Logger,
) http.Handler {
	guard := middleware.AuthGuard(middleware.GuardConfig{
		Locales:     locales.Supported,
		RefreshPath: refreshPath,
	})

	auth := NewAuth(backend, refresher, locales, logger)

	// Page patterns catch any GET path, so api routes are registered with methods to stay more specific
	root := http.NewServeMux()

	authHandler := http.StripPrefix("/api/auth", auth.Handler())
	root.Handle("GET /api/auth/", authHandler)
	root.Handle("POST /api/auth/", authHandler)

	proxy := handleProxy(api, logger)
	for _, method := range proxyMethods {
		root.Handle(method+" "+proxyPrefix+"/{path...}", proxy)
	}

	// Pages only render: their session store is read only, rotation goes through refresh handler
	page := chain(handlePage(), middleware.ReadOnlySession(sessions), guard)

	root.Handle("GET /{$}", handleRoot(locales))
	root.Handle("GET /{locale}", page)
	root.Handle("GET /{locale}/{page...}", page)

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.SessionMiddleware(sessions),
	)

	return handler
}

// Pages are rendered by frontend, the app only decides who may open them
func handlePage() http.HandlerFunc {
	type PageResponse struct {
		Locale string `json:"locale"`
		Page   string `json:"page"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, PageResponse{Locale: r.PathValue("locale"), Page: r.PathValue("page")})
	}
}

func handleRoot(locales Locales) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.Redirect(w, "/"+locales.Default)
	}
}
