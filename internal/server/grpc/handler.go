package grpc

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const tokenHintLen = 8

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.TokenPairResponse, error) {

	pair, err := s.sessions.Login(ctx, req.Email, req.Password, clientIP(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, "login", err)
	}

	return pairResponse(pair), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.TokenPairResponse, error) {

	pair, err := s.sessions.Refresh(ctx, req.RefreshToken, clientIP(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, "refresh", err)
	}

	return pairResponse(pair), nil
}

func (s *GRPCServer) Revoke(ctx context.Context, req *api.RevokeRequest) (*api.RevokeResponse, error) {

	ok, err := s.sessions.Revoke(ctx, req.RefreshToken, clientIP(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, "revoke", err)
	}
	if !ok {
		return nil, status.Error(codes.NotFound, "token not found")
	}

	return &api.RevokeResponse{Revoked: true}, nil
}

func (s *GRPCServer) ListSessions(ctx context.Context, req *api.ListSessionsRequest) (*api.ListSessionsResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, api.MsgAccessTokenMissing)
	}

	tokens, err := s.sessions.ListSessions(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, "list sessions", err)
	}

	resp := &api.ListSessionsResponse{Sessions: make([]api.Session, 0, len(tokens))}
	for _, t := range tokens {
		resp.Sessions = append(resp.Sessions, api.Session{
			TokenHint:   tokenHint(t.Token),
			CreatedOn:   t.CreatedOn,
			ExpiresOn:   t.ExpiresOn,
			CreatedByIP: t.CreatedByIP,
		})
	}

	return resp, nil
}

func (s *GRPCServer) RevokeAll(ctx context.Context, req *api.RevokeAllRequest) (*api.RevokeAllResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, api.MsgAccessTokenMissing)
	}

	n, err := s.sessions.RevokeAll(ctx, userID, clientIP(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, "revoke all", err)
	}

	return &api.RevokeAllResponse{Revoked: n}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {

	return &api.PingResponse{Status: "OK"}, nil

}

// toStatus maps session errors to gRPC codes. Messages stay generic so the
// caller cannot tell why a credential or token was refused.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, common.ErrUpstreamUnavailable):
		s.logger.Warn(ctx, "upstream unavailable", "op", op, "error", err)
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		s.logger.Error(ctx, "request failed", "op", op, "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func pairResponse(p *models.TokenPair) *api.TokenPairResponse {
	return &api.TokenPairResponse{
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		AccessTokenExpiresAt:  p.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: p.RefreshTokenExpiresAt,
	}
}

func tokenHint(token string) string {
	if len(token) <= tokenHintLen {
		return token
	}
	return token[:tokenHintLen] + "..."
}

// clientIP returns the first x-forwarded-for entry, falling back to the
// peer address.
func clientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.ForwardedForHeaderName); len(values) > 0 {
			first, _, _ := strings.Cut(values[0], ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}

	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
