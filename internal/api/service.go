package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "tokenkeeper.v1.SessionService"

const (
	SessionService_Login_FullMethodName        = "/" + ServiceName + "/Login"
	SessionService_Refresh_FullMethodName      = "/" + ServiceName + "/Refresh"
	SessionService_Revoke_FullMethodName       = "/" + ServiceName + "/Revoke"
	SessionService_ListSessions_FullMethodName = "/" + ServiceName + "/ListSessions"
	SessionService_RevokeAll_FullMethodName    = "/" + ServiceName + "/RevokeAll"
	SessionService_Ping_FullMethodName         = "/" + ServiceName + "/Ping"
)

// SessionServiceServer is implemented by the server transport.
type SessionServiceServer interface {
	Login(context.Context, *LoginRequest) (*TokenPairResponse, error)
	Refresh(context.Context, *RefreshRequest) (*TokenPairResponse, error)
	Revoke(context.Context, *RevokeRequest) (*RevokeResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	RevokeAll(context.Context, *RevokeAllRequest) (*RevokeAllResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionService_ServiceDesc, srv)
}

// unaryHandler adapts a typed service method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(SessionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SessionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SessionServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var SessionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler(SessionService_Login_FullMethodName, SessionServiceServer.Login)},
		{MethodName: "Refresh", Handler: unaryHandler(SessionService_Refresh_FullMethodName, SessionServiceServer.Refresh)},
		{MethodName: "Revoke", Handler: unaryHandler(SessionService_Revoke_FullMethodName, SessionServiceServer.Revoke)},
		{MethodName: "ListSessions", Handler: unaryHandler(SessionService_ListSessions_FullMethodName, SessionServiceServer.ListSessions)},
		{MethodName: "RevokeAll", Handler: unaryHandler(SessionService_RevokeAll_FullMethodName, SessionServiceServer.RevokeAll)},
		{MethodName: "Ping", Handler: unaryHandler(SessionService_Ping_FullMethodName, SessionServiceServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tokenkeeper/v1/session.json",
}

// Status messages that clients may act on.
const (
	MsgAccessTokenMissing = "missing access token"
	MsgAccessTokenExpired = "access token expired"
)
