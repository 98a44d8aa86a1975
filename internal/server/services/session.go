// Package services contains server-side business logic. This file implements
// SessionService, which binds login, refresh and revocation to the access
// token issuer and the refresh-token manager.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/audit"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// IdentityProvider verifies credentials and resolves identities. Unknown
// users and wrong passwords are both common.ErrInvalidCredentials; FindByID
// reports a vanished identity as common.ErrorNotFound.
type IdentityProvider interface {
	VerifyCredentials(ctx context.Context, email, password string) (*models.Identity, error)
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	Roles(ctx context.Context, id string) ([]string, error)
}

type AccessTokenIssuer interface {
	Issue(identity models.Identity, roles []string) (string, time.Time, error)
}

type RefreshTokenManager interface {
	Owner(ctx context.Context, token string) (string, error)
	Create(ctx context.Context, userID, ip string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, token, ip string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token, ip string) (bool, error)
	ListActive(ctx context.Context, userID string) ([]models.RefreshToken, error)
	RevokeAll(ctx context.Context, userID, ip string) (int, error)
}

// SessionService is the auth orchestrator. Errors it returns are one of
// common.ErrInvalidCredentials, common.ErrInvalidToken,
// common.ErrUpstreamUnavailable or common.ErrorInternal (possibly wrapped).
// It never retries.
type SessionService struct {
	identities IdentityProvider
	issuer     AccessTokenIssuer
	tokens     RefreshTokenManager
	audit      audit.Recorder
	log        logging.Logger
}

func NewSessionService(identities IdentityProvider, issuer AccessTokenIssuer, tokens RefreshTokenManager,
	recorder audit.Recorder, log logging.Logger) *SessionService {
	return &SessionService{
		identities: identities,
		issuer:     issuer,
		tokens:     tokens,
		audit:      recorder,
		log:        log.With("module", "sessions"),
	}
}

// Login verifies credentials and returns a fresh token pair.
func (s *SessionService) Login(ctx context.Context, email, password, ip string) (*models.TokenPair, error) {
	identity, err := s.identities.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.record(ctx, audit.ActionLoginFailed, "", ip, false, "invalid credentials")
			return nil, common.ErrInvalidCredentials
		}
		return nil, upstream("verify credentials", err)
	}

	roles, err := s.identities.Roles(ctx, identity.ID)
	if err != nil {
		return nil, upstream("load roles", err)
	}

	access, accessExp, err := s.issuer.Issue(*identity, roles)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	rt, err := s.tokens.Create(ctx, identity.ID, ip)
	if err != nil {
		return nil, upstream("create refresh token", err)
	}

	s.record(ctx, audit.ActionLogin, identity.ID, ip, true, "")
	return &models.TokenPair{
		AccessToken:           access,
		RefreshToken:          rt.Token,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: rt.ExpiresOn,
	}, nil
}

// Refresh rotates refreshToken and issues a new access token for the
// identity as it is now, so role changes take effect on refresh. The
// identity and roles are loaded before the token is touched, so an
// unavailable identity store leaves the presented token usable for a retry.
func (s *SessionService) Refresh(ctx context.Context, refreshToken, ip string) (*models.TokenPair, error) {
	userID, err := s.tokens.Owner(ctx, refreshToken)
	if err != nil {
		s.record(ctx, audit.ActionRefreshFailed, "", ip, false, err.Error())
		return nil, mapTokenError(err)
	}

	identity, err := s.identities.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			if _, rerr := s.tokens.Revoke(ctx, refreshToken, ip); rerr != nil {
				s.log.Error(ctx, "failed to revoke token of missing identity", "user_id", userID, "error", rerr)
			}
			s.record(ctx, audit.ActionRefreshFailed, userID, ip, false, "identity not found")
			return nil, common.ErrInvalidToken
		}
		return nil, upstream("load identity", err)
	}

	roles, err := s.identities.Roles(ctx, identity.ID)
	if err != nil {
		return nil, upstream("load roles", err)
	}

	next, err := s.tokens.Rotate(ctx, refreshToken, ip)
	if err != nil {
		mapped := mapTokenError(err)
		action := audit.ActionRefreshFailed
		if errors.Is(err, common.ErrTokenReused) {
			action = audit.ActionReuseDetected
		}
		s.record(ctx, action, userID, ip, false, err.Error())
		return nil, mapped
	}

	if next.UserID != identity.ID {
		s.discard(ctx, next, ip)
		s.record(ctx, audit.ActionRefreshFailed, next.UserID, ip, false, "token owner changed")
		return nil, common.ErrInvalidToken
	}

	access, accessExp, err := s.issuer.Issue(*identity, roles)
	if err != nil {
		s.discard(ctx, next, ip)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.record(ctx, audit.ActionRefresh, identity.ID, ip, true, "")
	return &models.TokenPair{
		AccessToken:           access,
		RefreshToken:          next.Token,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: next.ExpiresOn,
	}, nil
}

// Revoke ends the session of refreshToken. It reports false when the token
// was unknown or already inactive.
func (s *SessionService) Revoke(ctx context.Context, refreshToken, ip string) (bool, error) {
	ok, err := s.tokens.Revoke(ctx, refreshToken, ip)
	if err != nil {
		return false, upstream("revoke refresh token", err)
	}
	s.record(ctx, audit.ActionRevoke, "", ip, ok, "")
	return ok, nil
}

// ListSessions returns the active refresh tokens of userID.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	tokens, err := s.tokens.ListActive(ctx, userID)
	if err != nil {
		return nil, upstream("list sessions", err)
	}
	return tokens, nil
}

// RevokeAll ends every session of userID.
func (s *SessionService) RevokeAll(ctx context.Context, userID, ip string) (int, error) {
	n, err := s.tokens.RevokeAll(ctx, userID, ip)
	if err != nil {
		s.record(ctx, audit.ActionRevokeAll, userID, ip, false, err.Error())
		return n, upstream("revoke all sessions", err)
	}
	s.record(ctx, audit.ActionRevokeAll, userID, ip, true, fmt.Sprintf("revoked %d", n))
	return n, nil
}

// discard revokes a freshly rotated token the caller will never receive.
func (s *SessionService) discard(ctx context.Context, t *models.RefreshToken, ip string) {
	if _, err := s.tokens.Revoke(ctx, t.Token, ip); err != nil {
		s.log.Error(ctx, "failed to revoke undelivered refresh token", "user_id", t.UserID, "error", err)
	}
}

func (s *SessionService) record(ctx context.Context, action, userID, ip string, success bool, detail string) {
	e := audit.NewEvent(action, userID, ip, success)
	e.Detail = detail
	if err := s.audit.Record(ctx, e); err != nil {
		s.log.Error(ctx, "audit record failed", "action", action, "error", err)
	}
}

// mapTokenError folds refresh-token failures into the public error kinds.
// Token-state errors win over store errors, so a reuse whose chain
// revocation failed is still reported as an invalid token.
func mapTokenError(err error) error {
	if errors.Is(err, common.ErrTokenNotFound) || errors.Is(err, common.ErrTokenInactive) {
		return common.ErrInvalidToken
	}
	return upstream("rotate refresh token", err)
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrUpstreamUnavailable, op, err)
}
