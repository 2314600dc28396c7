package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
	"github.com/nkiryanov/leagueadmin/internal/logger"
	"github.com/nkiryanov/leagueadmin/internal/models"
)

const (
	refreshPath = "/auth/refresh"
	loginPath   = "/auth/login"
	logoutPath  = "/auth/logout"

	defaultTimeout = 10 * time.Second
)

// Backend answers auth calls with token pair wrapped into "tokens"
type tokensResponse struct {
	Tokens *models.TokenPair `json:"tokens"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Client talks to backend auth endpoints
// It never touches cookies: persisting tokens is up to the caller
type Client struct {
	BaseURL string

	client  *http.Client
	logger  logger.Logger
	timeout time.Duration
}

func NewClient(baseURL string, timeout time.Duration, l logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  l.With("component", "backend"),
		timeout: timeout,
	}
}

// Refresh exchanges refresh token for rotated token pair
// Any non 2xx answer or pair without tokens wraps apperrors.ErrRefreshRejected
func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	resp, err := c.post(ctx, refreshPath, "", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return models.TokenPair{}, err
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Info("Refresh token rejected", "status_code", resp.StatusCode)
		return models.TokenPair{}, fmt.Errorf("%w: status %d", apperrors.ErrRefreshRejected, resp.StatusCode)
	}

	pair, err := c.decodeTokens(resp)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrRefreshRejected, err)
	}
	return pair, nil
}

// Login exchanges admin credentials for token pair
// Backend 400 and 401 answers are apperrors.ErrInvalidCredentials
func (c *Client) Login(ctx context.Context, creds models.Credentials) (models.TokenPair, error) {
	resp, err := c.post(ctx, loginPath, "", creds)
	if err != nil {
		return models.TokenPair{}, err
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Warn("Failed to login", "status_code", resp.StatusCode)
		return models.TokenPair{}, fmt.Errorf("unexpected status code %d on login", resp.StatusCode)
	}

	return c.decodeTokens(resp)
}

// Logout revokes refresh token on backend
// Outcome matters to nobody: session is cleared locally anyway
func (c *Client) Logout(ctx context.Context, accessToken string, refreshToken string) error {
	resp, err := c.post(ctx, logoutPath, accessToken, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code %d on logout", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, accessToken string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		c.logger.Warn("Backend call failed", "path", path, "error", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) decodeTokens(resp *http.Response) (models.TokenPair, error) {
	var r tokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		c.logger.Warn("Failed to decode response", "error", err)
		return models.TokenPair{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if r.Tokens == nil || r.Tokens.Access == "" || r.Tokens.Refresh == "" {
		return models.TokenPair{}, errors.New("response has no token pair")
	}
	return *r.Tokens, nil
}

// cancelBody releases request timeout once body is closed
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
