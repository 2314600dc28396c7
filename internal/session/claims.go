package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
	"github.com/nkiryanov/leagueadmin/internal/models"
)

// DecodePayload reads access token claims WITHOUT verifying signature
// Only backend can verify tokens; the result is good for expiry hints and nothing else
func DecodePayload(token string) (models.TokenPayload, error) {
	claims := jwt.MapClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return models.TokenPayload{}, fmt.Errorf("%w: %w", apperrors.ErrClaimDecode, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return models.TokenPayload{}, fmt.Errorf("%w: %w", apperrors.ErrClaimDecode, err)
	}
	if exp == nil {
		return models.TokenPayload{}, fmt.Errorf("%w: %w", apperrors.ErrClaimDecode, errors.New("token has no exp claim"))
	}

	payload := models.TokenPayload{ExpiresAt: exp.Time}
	if sub, ok := claims["sub"]; ok && sub != nil {
		payload.Subject = fmt.Sprint(sub)
	}

	return payload, nil
}
