// Package refresh manages the refresh-token lifecycle: creation, rotation,
// revocation and reuse detection across rotation chains.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
)

// tokenBytes is the amount of crypto/rand entropy per refresh token.
const tokenBytes = 32

// Manager creates, rotates and revokes refresh tokens on top of a
// refreshtokens.Repository. It holds no mutable state of its own; all
// coordination between concurrent callers happens in the repository.
type Manager struct {
	repo     refreshtokens.Repository
	lifetime time.Duration
	log      logging.Logger

	now      func() time.Time
	newToken func() (string, error)
}

func NewManager(repo refreshtokens.Repository, s config.TokenSettings, log logging.Logger) (*Manager, error) {
	if s.RefreshTokenLifetime <= 0 {
		return nil, fmt.Errorf("%w: refresh token lifetime must be positive", common.ErrMisconfiguration)
	}
	return &Manager{
		repo:     repo,
		lifetime: s.RefreshTokenLifetime,
		log:      log.With("module", "refresh"),
		now:      time.Now,
		newToken: func() (string, error) { return common.MakeRandURLString(tokenBytes) },
	}, nil
}

// Create issues and stores a new active refresh token for userID.
func (m *Manager) Create(ctx context.Context, userID, ip string) (*models.RefreshToken, error) {
	t, err := m.build(userID, ip, m.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := m.repo.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return t, nil
}

// Rotate exchanges an active token for its successor.
//
// Errors:
//   - common.ErrTokenNotFound: the token does not exist.
//   - common.ErrTokenReused: the token was already rotated; every descendant
//     in its chain has been revoked before returning.
//   - common.ErrTokenInactive: the token expired or was revoked.
//
// Anything else is a store failure.
func (m *Manager) Rotate(ctx context.Context, token, ip string) (*models.RefreshToken, error) {
	cur, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	now := m.now().UTC()
	if !cur.IsActive(now) {
		return nil, m.rejectInactive(ctx, cur, ip, now)
	}

	next, err := m.build(cur.UserID, ip, now)
	if err != nil {
		return nil, err
	}
	old := cur.Revoke(now, ip, models.ReasonReplaced)
	old.ReplacedByToken = next.Token

	err = m.repo.Rotate(ctx, old, next)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, common.ErrConflict) {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	// Somebody else changed the token between our read and write.
	cur, rerr := m.repo.FindByToken(ctx, token)
	if rerr != nil {
		return nil, fmt.Errorf("reload refresh token: %w", rerr)
	}
	if cur.IsActive(now) {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	return nil, m.rejectInactive(ctx, cur, ip, now)
}

// Owner returns the user a token was issued to, whatever its state. It does
// not change the token.
func (m *Manager) Owner(ctx context.Context, token string) (string, error) {
	cur, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrTokenNotFound
		}
		return "", fmt.Errorf("find refresh token: %w", err)
	}
	return cur.UserID, nil
}

// Revoke revokes a single active token. It reports false without error when
// the token is unknown or already inactive.
func (m *Manager) Revoke(ctx context.Context, token, ip string) (bool, error) {
	cur, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find refresh token: %w", err)
	}

	now := m.now().UTC()
	if !cur.IsActive(now) {
		return false, nil
	}

	if err := m.repo.Update(ctx, cur.Revoke(now, ip, models.ReasonRevoked)); err != nil {
		if errors.Is(err, common.ErrConflict) || errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return true, nil
}

// ListActive returns the active tokens of userID, newest first.
func (m *Manager) ListActive(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	all, err := m.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}

	now := m.now().UTC()
	active := make([]models.RefreshToken, 0, len(all))
	for _, t := range all {
		if t.IsActive(now) {
			active = append(active, t)
		}
	}
	return active, nil
}

// RevokeAll revokes every active token of userID and returns how many it
// revoked. On a store failure the count so far is returned with the error.
func (m *Manager) RevokeAll(ctx context.Context, userID, ip string) (int, error) {
	active, err := m.ListActive(ctx, userID)
	if err != nil {
		return 0, err
	}

	now := m.now().UTC()
	n := 0
	for _, t := range active {
		err := m.repo.Update(ctx, t.Revoke(now, ip, models.ReasonRevokedAll))
		switch {
		case err == nil:
			n++
		case errors.Is(err, common.ErrConflict):
		default:
			return n, fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	return n, nil
}

func (m *Manager) build(userID, ip string, now time.Time) (*models.RefreshToken, error) {
	tok, err := m.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &models.RefreshToken{
		Token:       tok,
		UserID:      userID,
		CreatedOn:   now,
		ExpiresOn:   now.Add(m.lifetime),
		CreatedByIP: ip,
	}, nil
}

// rejectInactive picks the error for an inactive token and, when the token
// has a successor, revokes the rest of its chain.
func (m *Manager) rejectInactive(ctx context.Context, cur *models.RefreshToken, ip string, now time.Time) error {
	if !cur.WasRotated() {
		return common.ErrTokenInactive
	}

	m.log.Warn(ctx, "refresh token reuse detected", "user_id", cur.UserID, "ip", ip)

	n, err := m.revokeDescendants(ctx, cur.ReplacedByToken, ip, now)
	if err != nil {
		m.log.Error(ctx, "chain revocation incomplete", "user_id", cur.UserID, "revoked", n, "error", err)
		return errors.Join(common.ErrTokenReused, err)
	}
	m.log.Info(ctx, "chain revoked", "user_id", cur.UserID, "revoked", n)
	return common.ErrTokenReused
}

// revokeDescendants walks the chain forward from start and revokes every
// record that is not revoked yet.
func (m *Manager) revokeDescendants(ctx context.Context, start, ip string, now time.Time) (int, error) {
	seen := make(map[string]struct{})
	revoked := 0
	retried := false

	for next := start; next != ""; {
		if _, ok := seen[next]; ok {
			return revoked, nil
		}

		t, err := m.repo.FindByToken(ctx, next)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return revoked, nil
			}
			return revoked, err
		}

		if !t.IsRevoked() {
			err := m.repo.Update(ctx, t.Revoke(now, ip, models.ReasonReuseDetected))
			if errors.Is(err, common.ErrConflict) && !retried {
				// Lost a race with a rotation or revocation; read it again.
				retried = true
				continue
			}
			if err != nil {
				return revoked, err
			}
			revoked++
		}

		retried = false
		seen[next] = struct{}{}
		next = t.ReplacedByToken
	}

	return revoked, nil
}
