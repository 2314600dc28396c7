package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/leagueadmin/internal/apiclient"
	"github.com/nkiryanov/leagueadmin/internal/handlers"
	"github.com/nkiryanov/leagueadmin/internal/logger"
	"github.com/nkiryanov/leagueadmin/internal/service/backend"
	"github.com/nkiryanov/leagueadmin/internal/service/refresh"
	"github.com/nkiryanov/leagueadmin/internal/session"
	"github.com/nkiryanov/leagueadmin/internal/tokencipher"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
}

func NewServerApp(c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Session cookies cipher, insecure key allowed only in development (config validation)
	var cipher *tokencipher.Cipher
	if c.SessionSecret == "" {
		cipher, err = tokencipher.NewInsecure(l)
	} else {
		cipher, err = tokencipher.New(c.SessionSecret)
	}
	if err != nil {
		return nil, fmt.Errorf("error while creating session cipher. Err: %w", err)
	}

	sessions, err := session.NewManager(session.Config{Secure: c.SecureCookies(), Logger: l}, cipher)
	if err != nil {
		return nil, fmt.Errorf("error while creating session manager. Err: %w", err)
	}

	// Backend services
	// Refresh boundary handler gets its own single-flight domain
	backendClient := backend.NewClient(c.APIBaseURL, c.APITimeout, l)
	api, err := apiclient.New(
		apiclient.Config{BaseURL: c.APIBaseURL, Timeout: c.APITimeout, Logger: l},
		refresh.NewCoordinator(backendClient, c.APITimeout, l),
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating api client. Err: %w", err)
	}

	router := handlers.NewRouter(
		sessions,
		backendClient,
		refresh.NewCoordinator(backendClient, c.APITimeout, l),
		api,
		handlers.Locales{Supported: c.Locales, Default: c.DefaultLocale},
		l,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     l,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", "address", s.ListenAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(timeoutCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
			return httpServer.Close()
		}

		s.logger.Info("HTTP server stopped")
		return err
	})

	return g.Wait()
}
