package domain

import "time"

type User struct {
	ID            string
	Email         string
	FullName      string
	PasswordHash  string // argon2id encoded, empty for OAuth-only accounts
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
