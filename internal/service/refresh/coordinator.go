// Package refresh shares one backend refresh call between all concurrent callers.
//
// Refresh tokens rotate: the backend invalidates a refresh token once it is used.
// Two parallel refresh calls with the same token would make one of them fail and
// could log the user out, so callers holding the same token join a single call.
package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
	"github.com/nkiryanov/leagueadmin/internal/logger"
	"github.com/nkiryanov/leagueadmin/internal/models"
)

const defaultTimeout = 15 * time.Second

// Refresher is the backend refresh contract
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// Store is the part of session store coordinator needs
type Store interface {
	RefreshToken() (string, bool)
	SaveSession(access string) error
	SaveRefreshToken(refresh string) error
}

type Coordinator struct {
	group     singleflight.Group
	refresher Refresher
	logger    logger.Logger
	timeout   time.Duration
}

// NewCoordinator creates coordinator
// Timeout bounds one backend call, zero means default
func NewCoordinator(r Refresher, timeout time.Duration, l logger.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Coordinator{
		refresher: r,
		logger:    l.With("component", "refresh"),
		timeout:   timeout,
	}
}

// Refresh rotates session tokens of the store and returns new access token
//
// Returns apperrors.ErrNoRefreshToken without calling backend if store has no refresh token.
// Any other failure wraps apperrors.ErrRefreshFailed; clearing the session is up to the caller.
// New tokens are saved to the store when it can write cookies, otherwise they are only returned.
func (c *Coordinator) Refresh(ctx context.Context, store Store) (string, error) {
	refreshToken, ok := store.RefreshToken()
	if !ok {
		return "", apperrors.ErrNoRefreshToken
	}

	pair, err := c.RefreshPair(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	if err := store.SaveSession(pair.Access); err != nil {
		c.logger.Debug("Refreshed access token not persisted", "error", err)
	}
	if err := store.SaveRefreshToken(pair.Refresh); err != nil {
		c.logger.Debug("Refreshed refresh token not persisted", "error", err)
	}

	return pair.Access, nil
}

// RefreshPair calls backend once for all concurrent callers with the same refresh token
//
// Backend call is detached from caller cancellation and bounded by coordinator timeout.
// Every caller waits for the call to settle: the backend rotates the token anyway,
// so a caller that left early would lose the new pair.
func (c *Coordinator) RefreshPair(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	key := fingerprint(refreshToken)

	v, err, _ := c.group.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		c.logger.Debug("Refreshing session", "key", key[:12])

		pair, err := c.refresher.Refresh(callCtx, refreshToken)
		if err != nil {
			c.logger.Info("Session refresh failed", "key", key[:12], "error", err)
			return models.TokenPair{}, err
		}
		return pair, nil
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrRefreshFailed, err)
	}

	return v.(models.TokenPair), nil
}

// Raw refresh tokens never become map keys or log fields
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
