package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type fakeSessions struct {
	pair    *models.TokenPair
	revoked bool
	tokens  []models.RefreshToken
	count   int
	err     error

	gotIP     string
	gotUserID string
	gotToken  string
}

func (f *fakeSessions) Login(_ context.Context, email, password, ip string) (*models.TokenPair, error) {
	f.gotIP = ip
	return f.pair, f.err
}

func (f *fakeSessions) Refresh(_ context.Context, token, ip string) (*models.TokenPair, error) {
	f.gotToken, f.gotIP = token, ip
	return f.pair, f.err
}

func (f *fakeSessions) Revoke(_ context.Context, token, ip string) (bool, error) {
	f.gotToken, f.gotIP = token, ip
	return f.revoked, f.err
}

func (f *fakeSessions) ListSessions(_ context.Context, userID string) ([]models.RefreshToken, error) {
	f.gotUserID = userID
	return f.tokens, f.err
}

func (f *fakeSessions) RevokeAll(_ context.Context, userID, ip string) (int, error) {
	f.gotUserID, f.gotIP = userID, ip
	return f.count, f.err
}

type fakeParser struct {
	claims *auth.Claims
	err    error
}

func (f *fakeParser) Parse(string) (*auth.Claims, error) {
	return f.claims, f.err
}

func withUser(id string) *fakeParser {
	c := &auth.Claims{}
	c.Subject = id
	return &fakeParser{claims: c}
}

func TestHandlers_LoginAndRefresh(t *testing.T) {
	exp := time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC)
	fs := &fakeSessions{pair: &models.TokenPair{AccessToken: "at", RefreshToken: "rt", AccessTokenExpiresAt: exp, RefreshTokenExpiresAt: exp.Add(time.Hour)}}
	client := startBufconn(t, NewGRPCServer("", logging.Nop(), fs, &fakeParser{}, time.Second))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-forwarded-for", "203.0.113.7, 10.0.0.1")

	resp, err := client.Login(ctx, &api.LoginRequest{Email: "a@x", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "at", resp.AccessToken)
	assert.Equal(t, "rt", resp.RefreshToken)
	assert.True(t, exp.Equal(resp.AccessTokenExpiresAt))
	assert.Equal(t, "203.0.113.7", fs.gotIP)

	_, err = client.Refresh(ctx, &api.RefreshRequest{RefreshToken: "old"})
	require.NoError(t, err)
	assert.Equal(t, "old", fs.gotToken)
}

func TestHandlers_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"invalid credentials", common.ErrInvalidCredentials, codes.Unauthenticated},
		{"invalid token", fmt.Errorf("refresh: %w", common.ErrInvalidToken), codes.Unauthenticated},
		{"upstream", fmt.Errorf("%w: rotate: %w", common.ErrUpstreamUnavailable, errors.New("down")), codes.Unavailable},
		{"internal", fmt.Errorf("%w: boom", common.ErrorInternal), codes.Internal},
		{"unknown", errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := startBufconn(t, NewGRPCServer("", logging.Nop(), &fakeSessions{err: tt.err}, &fakeParser{}, time.Second))

			_, err := client.Login(context.Background(), &api.LoginRequest{})
			assert.Equal(t, tt.code, status.Code(err))

			_, err = client.Refresh(context.Background(), &api.RefreshRequest{})
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestHandlers_Revoke(t *testing.T) {
	fs := &fakeSessions{revoked: true}
	client := startBufconn(t, NewGRPCServer("", logging.Nop(), fs, &fakeParser{}, time.Second))

	resp, err := client.Revoke(context.Background(), &api.RevokeRequest{RefreshToken: "rt"})
	require.NoError(t, err)
	assert.True(t, resp.Revoked)

	fs.revoked = false
	_, err = client.Revoke(context.Background(), &api.RevokeRequest{RefreshToken: "rt"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHandlers_ProtectedMethods(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fs := &fakeSessions{
		tokens: []models.RefreshToken{{Token: "abcdefghijklmnop", CreatedOn: now, ExpiresOn: now.Add(time.Hour), CreatedByIP: "10.0.0.1"}},
		count:  3,
	}
	client := startBufconn(t, NewGRPCServer("", logging.Nop(), fs, withUser("u1"), time.Second))

	_, err := client.ListSessions(context.Background(), &api.ListSessionsRequest{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, api.MsgAccessTokenMissing, status.Convert(err).Message())

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "jwt")

	list, err := client.ListSessions(ctx, &api.ListSessionsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, "abcdefgh...", list.Sessions[0].TokenHint)
	assert.Equal(t, "10.0.0.1", list.Sessions[0].CreatedByIP)
	assert.Equal(t, "u1", fs.gotUserID)

	all, err := client.RevokeAll(ctx, &api.RevokeAllRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Revoked)
}

func TestHandlers_Ping(t *testing.T) {
	client := startBufconn(t, NewGRPCServer("", logging.Nop(), &fakeSessions{}, &fakeParser{}, time.Second))

	resp, err := client.Ping(context.Background(), &api.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Status)
}

func TestClientIP(t *testing.T) {
	tcp := &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 5555}

	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"none", context.Background(), ""},
		{"peer", peer.NewContext(context.Background(), &peer.Peer{Addr: tcp}), "192.0.2.10"},
		{
			"forwarded wins",
			metadata.NewIncomingContext(peer.NewContext(context.Background(), &peer.Peer{Addr: tcp}),
				metadata.Pairs("x-forwarded-for", " 198.51.100.1 ,10.0.0.2")),
			"198.51.100.1",
		},
		{
			"empty forwarded falls back",
			metadata.NewIncomingContext(peer.NewContext(context.Background(), &peer.Peer{Addr: tcp}),
				metadata.Pairs("x-forwarded-for", "")),
			"192.0.2.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clientIP(tt.ctx))
		})
	}
}

func TestTokenHint(t *testing.T) {
	assert.Equal(t, "short", tokenHint("short"))
	assert.Equal(t, "12345678...", tokenHint("123456789"))
}
