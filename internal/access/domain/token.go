package domain

import "time"

// TokenPair is what credential issuance returns: the short-lived signed
// access token (JWT) and the opaque refresh token bound to a session.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until access expiry
	SessionID    string        `json:"session_id"`
}
