// Package auth issues and verifies signed access tokens.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

const minSecretLen = 32

// Claims is the fixed claim set carried by every access token. The subject
// is the identity id; Roles is serialized as an array with one entry per
// role.
type Claims struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs access tokens with HS256. It is immutable after construction
// and safe for concurrent use.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      func() time.Time
}

// NewIssuer validates the signing settings and returns an Issuer.
// Any invalid setting is reported as common.ErrMisconfiguration.
func NewIssuer(s config.TokenSettings) (*Issuer, error) {
	switch {
	case len(s.SigningSecret) < minSecretLen:
		return nil, fmt.Errorf("%w: signing secret must be at least %d bytes", common.ErrMisconfiguration, minSecretLen)
	case s.Issuer == "":
		return nil, fmt.Errorf("%w: issuer is empty", common.ErrMisconfiguration)
	case s.Audience == "":
		return nil, fmt.Errorf("%w: audience is empty", common.ErrMisconfiguration)
	case s.AccessTokenLifetime <= 0:
		return nil, fmt.Errorf("%w: access token lifetime must be positive", common.ErrMisconfiguration)
	}

	return &Issuer{
		secret:   slices.Clone(s.SigningSecret),
		issuer:   s.Issuer,
		audience: s.Audience,
		lifetime: s.AccessTokenLifetime,
		now:      time.Now,
	}, nil
}

// Issue returns a compact HS256 token for identity and its expiry.
func (i *Issuer) Issue(identity models.Identity, roles []string) (string, time.Time, error) {
	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.lifetime)

	claims := Claims{
		Email: identity.Email,
		Name:  identity.DisplayName,
		Roles: normalizeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signed, expiresAt, nil
}

// Parse verifies signature, issuer, audience and expiry of tokenString.
// Expired tokens yield common.ErrTokenExpired; any other failure yields
// common.ErrInvalidToken.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
