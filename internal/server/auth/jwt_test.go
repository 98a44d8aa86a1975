package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	t0         = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	alice      = models.Identity{ID: "u-alice", Email: "alice@example.com", DisplayName: "Alice"}
)

func settings() config.TokenSettings {
	return config.TokenSettings{
		SigningSecret:        testSecret,
		Issuer:               "tokenkeeper",
		Audience:             "clients",
		AccessTokenLifetime:  15 * time.Minute,
		RefreshTokenLifetime: 30 * 24 * time.Hour,
	}
}

func newTestIssuer(t *testing.T, clock *time.Time) *Issuer {
	t.Helper()
	i, err := NewIssuer(settings())
	require.NoError(t, err)
	i.now = func() time.Time { return *clock }
	return i
}

func decodePayload(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestNewIssuer_Misconfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *config.TokenSettings)
	}{
		{"empty secret", func(s *config.TokenSettings) { s.SigningSecret = nil }},
		{"short secret", func(s *config.TokenSettings) { s.SigningSecret = []byte("short") }},
		{"empty issuer", func(s *config.TokenSettings) { s.Issuer = "" }},
		{"empty audience", func(s *config.TokenSettings) { s.Audience = "" }},
		{"zero lifetime", func(s *config.TokenSettings) { s.AccessTokenLifetime = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings()
			tt.mutate(&s)
			_, err := NewIssuer(s)
			assert.ErrorIs(t, err, common.ErrMisconfiguration)
		})
	}
}

func TestIssue_Claims(t *testing.T) {
	clock := t0
	i := newTestIssuer(t, &clock)

	tok, exp, err := i.Issue(alice, []string{"writer", "admin", "writer", ""})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(15*time.Minute), exp)

	p := decodePayload(t, tok)
	assert.Equal(t, "u-alice", p["sub"])
	assert.Equal(t, "alice@example.com", p["email"])
	assert.Equal(t, "Alice", p["name"])
	assert.Equal(t, []any{"admin", "writer"}, p["role"])
	assert.Equal(t, "tokenkeeper", p["iss"])
	assert.Equal(t, []any{"clients"}, p["aud"])
	assert.EqualValues(t, t0.Unix(), p["iat"])
	assert.EqualValues(t, t0.Add(15*time.Minute).Unix(), p["exp"])
}

func TestIssue_NoRoles(t *testing.T) {
	clock := t0
	i := newTestIssuer(t, &clock)

	tok, _, err := i.Issue(alice, nil)
	require.NoError(t, err)

	claims, err := i.Parse(tok)
	require.NoError(t, err)
	assert.Empty(t, claims.Roles)
}

func TestParse_ExpiryWindow(t *testing.T) {
	clock := t0
	i := newTestIssuer(t, &clock)

	tok, _, err := i.Issue(alice, []string{"admin"})
	require.NoError(t, err)

	clock = t0.Add(14 * time.Minute)
	claims, err := i.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-alice", claims.Subject)
	assert.Equal(t, []string{"admin"}, claims.Roles)

	clock = t0.Add(16 * time.Minute)
	_, err = i.Parse(tok)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestParse_Rejects(t *testing.T) {
	clock := t0
	i := newTestIssuer(t, &clock)

	good, _, err := i.Issue(alice, nil)
	require.NoError(t, err)

	other := settings()
	other.SigningSecret = []byte("ffffffffffffffffffffffffffffffff")
	wrongKey, err := NewIssuer(other)
	require.NoError(t, err)
	wrongKey.now = i.now
	forged, _, err := wrongKey.Issue(alice, nil)
	require.NoError(t, err)

	otherAud := settings()
	otherAud.Audience = "someone-else"
	audIssuer, err := NewIssuer(otherAud)
	require.NoError(t, err)
	audIssuer.now = i.now
	wrongAud, _, err := audIssuer.Issue(alice, nil)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u-alice", Issuer: "tokenkeeper", Audience: jwt.ClaimStrings{"clients"},
		ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u-mallory","iss":"tokenkeeper","aud":["clients"],"exp":9999999999}`)) + "." + parts[2]

	tests := map[string]string{
		"wrong key":      forged,
		"wrong audience": wrongAud,
		"alg none":       unsigned,
		"malformed":      "not.a.jwt",
		"tampered":       tampered,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := i.Parse(tok)
			assert.ErrorIs(t, err, common.ErrInvalidToken)
		})
	}
}
