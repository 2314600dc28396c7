package models

import (
	"time"
)

// Token pair issued by backend on login or refresh
// Refresh token rotates on every refresh
type TokenPair struct {
	Access  string `json:"accessToken"`
	Refresh string `json:"refreshToken"`
}

// Claims extracted from access token payload without verification
// Used only to tell when the token goes stale, never to authorize anything
type TokenPayload struct {
	Subject   string
	ExpiresAt time.Time
}
