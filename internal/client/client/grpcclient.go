package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Tokens is the pair the client currently holds.
type Tokens struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

type GRPCClient struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	client      api.SessionServiceClient

	mu     sync.Mutex
	tokens Tokens
}

var protectedMethods = map[string]bool{
	api.SessionService_ListSessions_FullMethodName: true,
	api.SessionService_RevokeAll_FullMethodName:    true,
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if !protectedMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, s.current().AccessToken), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != api.MsgAccessTokenExpired {
		return err
	}

	if s.current().RefreshToken == "" {
		return err
	}

	if err := s.Refresh(ctx); err != nil {
		return err
	}

	// tokens refreshed, retry once with the new access token
	return invoker(withAccessToken(ctx, s.current().AccessToken), method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpointURL string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = api.NewSessionServiceClient(conn)

	return c, nil
}

func (s *GRPCClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *GRPCClient) current() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *GRPCClient) setTokens(resp *api.TokenPairResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp == nil {
		s.tokens = Tokens{}
		return
	}
	s.tokens = Tokens{
		AccessToken:           resp.AccessToken,
		RefreshToken:          resp.RefreshToken,
		AccessTokenExpiresAt:  resp.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: resp.RefreshTokenExpiresAt,
	}
}

// Tokens returns a copy of the pair currently held.
func (s *GRPCClient) Tokens() Tokens {
	return s.current()
}

func (s *GRPCClient) IsLoggedIn() bool {
	return s.current().RefreshToken != ""
}

func (s *GRPCClient) Login(ctx context.Context, email string, password []byte) error {

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Login(ctx, &api.LoginRequest{Email: email, Password: string(password)})
	if err != nil {
		return s.mapError(err)
	}

	s.setTokens(resp)

	return nil
}

// Refresh exchanges the held refresh token for a new pair. A rejected token
// clears the held pair.
func (s *GRPCClient) Refresh(ctx context.Context) error {

	rt := s.current().RefreshToken
	if rt == "" {
		return ErrNotLoggedIn
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Refresh(ctx, &api.RefreshRequest{RefreshToken: rt})
	if err != nil {
		err = s.mapError(err)
		if err == ErrUnauthorized {
			s.setTokens(nil)
		}
		return err
	}

	s.setTokens(resp)

	return nil
}

// Logout revokes the held refresh token. The local pair is dropped unless
// the server could not be reached.
func (s *GRPCClient) Logout(ctx context.Context) error {

	rt := s.current().RefreshToken
	if rt == "" {
		return ErrNotLoggedIn
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.Revoke(ctx, &api.RevokeRequest{RefreshToken: rt})
	if err != nil {
		err = s.mapError(err)
		if err == ErrUnavailable {
			return err
		}
	}

	s.setTokens(nil)

	return err
}

func (s *GRPCClient) Sessions(ctx context.Context) ([]api.Session, error) {

	if !s.IsLoggedIn() {
		return nil, ErrNotLoggedIn
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.ListSessions(ctx, &api.ListSessionsRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}

	return resp.Sessions, nil
}

// LogoutAll revokes every session of the current user, this one included.
func (s *GRPCClient) LogoutAll(ctx context.Context) (int, error) {

	if !s.IsLoggedIn() {
		return 0, ErrNotLoggedIn
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.RevokeAll(ctx, &api.RevokeAllRequest{})
	if err != nil {
		return 0, s.mapError(err)
	}

	s.setTokens(nil)

	return resp.Revoked, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
