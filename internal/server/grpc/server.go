package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"google.golang.org/grpc"
)

// SessionService is the orchestrator the transport delegates to.
type SessionService interface {
	Login(ctx context.Context, email, password, ip string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken, ip string) (*models.TokenPair, error)
	Revoke(ctx context.Context, refreshToken, ip string) (bool, error)
	ListSessions(ctx context.Context, userID string) ([]models.RefreshToken, error)
	RevokeAll(ctx context.Context, userID, ip string) (int, error)
}

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type GRPCServer struct {
	address  string
	sessions SessionService
	tokens   TokenParser
	logger   logging.Logger
	timeout  time.Duration
}

var _ api.SessionServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, ss SessionService, tp TokenParser, timeout time.Duration) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		sessions: ss,
		tokens:   tp,
		timeout:  timeout,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.timeoutInterceptor, s.accessTokenInterceptor))
	api.RegisterSessionServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
