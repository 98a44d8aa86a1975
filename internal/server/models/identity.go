package models

import "time"

// Identity is a verified principal as returned by the identity provider.
// The session core never owns or mutates it.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}
