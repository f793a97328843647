package http

import "time"

// Request and response bodies for the JSON API. Field names are part of
// the wire contract; change them additively only.

type registerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	EmailVerified bool   `json:"email_verified"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	SessionID    string `json:"session_id"`
}

type refreshRequest struct {
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id"`
	RefreshToken string `json:"refresh_token"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type passwordResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type emailVerifyConfirm struct {
	Token string `json:"token"`
}

type createOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type organizationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type createInviteRequest struct {
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"` // unix seconds, default 7 days out
	MaxUses   int    `json:"max_uses,omitempty"`   // default 1
}

type inviteResponse struct {
	ID            string    `json:"id"`
	Code          string    `json:"code,omitempty"` // only returned to the creator
	Organization  string    `json:"organization_id"`
	Role          string    `json:"role"`
	Email         string    `json:"email,omitempty"`
	Status        string    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
	MaxUses       int       `json:"max_uses"`
	UsesRemaining int       `json:"uses_remaining"`
}

type acceptInviteRequest struct {
	Code string `json:"code"`
}

type revokeInviteRequest struct {
	Reason string `json:"reason,omitempty"`
}

type membershipResponse struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Organization string     `json:"organization_id"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	JoinedAt     time.Time  `json:"joined_at"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type healthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *healthChecks `json:"checks,omitempty"`
}

type healthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
}
