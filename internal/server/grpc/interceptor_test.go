package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestServer(p TokenParser) *GRPCServer {
	return NewGRPCServer("", logging.Nop(), &fakeSessions{}, p, time.Second)
}

func TestInterceptor_UnprotectedAllowsWithoutToken(t *testing.T) {
	s := newTestServer(&fakeParser{err: common.ErrInvalidToken})

	info := &grpc.UnaryServerInfo{FullMethod: api.SessionService_Refresh_FullMethodName}
	handlerCalled := false

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	require.NoError(t, err)
	assert.True(t, handlerCalled)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_Protected(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: api.SessionService_ListSessions_FullMethodName}
	withToken := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, "jwt"))

	tests := []struct {
		name    string
		ctx     context.Context
		parser  *fakeParser
		code    codes.Code
		message string
	}{
		{"missing", context.Background(), withUser("u1"), codes.Unauthenticated, api.MsgAccessTokenMissing},
		{"expired", withToken, &fakeParser{err: common.ErrTokenExpired}, codes.Unauthenticated, api.MsgAccessTokenExpired},
		{"invalid", withToken, &fakeParser{err: common.ErrInvalidToken}, codes.Unauthenticated, "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.parser)
			h := func(ctx context.Context, req interface{}) (interface{}, error) {
				t.Fatal("handler should not be called")
				return nil, nil
			}

			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, h)
			st := status.Convert(err)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.message, st.Message())
		})
	}

	t.Run("valid", func(t *testing.T) {
		s := newTestServer(withUser("u42"))
		var got string
		h := func(ctx context.Context, req interface{}) (interface{}, error) {
			got, _ = userIDFromContext(ctx)
			return nil, nil
		}

		_, err := s.accessTokenInterceptor(withToken, nil, info, h)
		require.NoError(t, err)
		assert.Equal(t, "u42", got)
	})
}

func TestTimeoutInterceptor(t *testing.T) {
	s := newTestServer(&fakeParser{})
	s.timeout = 50 * time.Millisecond

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		return nil, nil
	}

	_, err := s.timeoutInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, h)
	require.NoError(t, err)

	s.timeout = 0
	_, err = s.timeoutInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		return nil, nil
	})
	require.NoError(t, err)
}
