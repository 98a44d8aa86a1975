// Package models defines server-side data models persisted by the
// repositories.
package models

import "time"

// Reasons recorded together with RevokedOn.
const (
	ReasonReplaced      = "replaced"
	ReasonRevoked       = "revoked"
	ReasonReuseDetected = "reuse_detected"
	ReasonRevokedAll    = "revoked_all"
)

// RefreshToken is one link of a rotation chain. Records are never deleted;
// they are marked revoked exactly once and then only read.
type RefreshToken struct {
	// Token is the opaque value handed to the client. It is the primary key.
	Token  string
	UserID string

	CreatedOn   time.Time
	ExpiresOn   time.Time
	CreatedByIP string

	// RevokedOn is nil while the token has not been revoked or rotated.
	RevokedOn     *time.Time
	RevokedByIP   string
	RevokedReason string

	// ReplacedByToken is the successor in the chain, set at rotation time.
	ReplacedByToken string
}

// IsExpired reports whether the token's lifetime has ended at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresOn)
}

// IsRevoked reports whether the token has been revoked or rotated.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedOn != nil
}

// IsActive reports whether the token can still be exchanged at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// WasRotated reports whether the token has a successor.
func (t *RefreshToken) WasRotated() bool {
	return t.ReplacedByToken != ""
}

// Revoke returns a copy of t marked revoked at now. The receiver is left
// untouched so callers can keep the version they read from storage.
func (t RefreshToken) Revoke(now time.Time, ip, reason string) *RefreshToken {
	revokedOn := now
	t.RevokedOn = &revokedOn
	t.RevokedByIP = ip
	t.RevokedReason = reason
	return &t
}
