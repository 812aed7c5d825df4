package identityv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "authsync.v1.Identity"

const (
	Identity_Register_FullMethodName    = "/" + ServiceName + "/Register"
	Identity_Login_FullMethodName       = "/" + ServiceName + "/Login"
	Identity_Refresh_FullMethodName     = "/" + ServiceName + "/Refresh"
	Identity_Verify_FullMethodName      = "/" + ServiceName + "/Verify"
	Identity_Logout_FullMethodName      = "/" + ServiceName + "/Logout"
	Identity_UpdateEmail_FullMethodName = "/" + ServiceName + "/UpdateEmail"
	Identity_PublicKey_FullMethodName   = "/" + ServiceName + "/PublicKey"
)

// IdentityServer is the server API for the Identity service.
type IdentityServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error)
	Verify(context.Context, *VerifyRequest) (*VerifyResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	UpdateEmail(context.Context, *UpdateEmailRequest) (*UpdateEmailResponse, error)
	PublicKey(context.Context, *PublicKeyRequest) (*PublicKeyResponse, error)
}

// UnimplementedIdentityServer must be embedded to have forward compatible implementations.
type UnimplementedIdentityServer struct{}

func (UnimplementedIdentityServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedIdentityServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedIdentityServer) Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
}
func (UnimplementedIdentityServer) Verify(context.Context, *VerifyRequest) (*VerifyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Verify not implemented")
}
func (UnimplementedIdentityServer) Logout(context.Context, *LogoutRequest) (*LogoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
}
func (UnimplementedIdentityServer) UpdateEmail(context.Context, *UpdateEmailRequest) (*UpdateEmailResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateEmail not implemented")
}
func (UnimplementedIdentityServer) PublicKey(context.Context, *PublicKeyRequest) (*PublicKeyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PublicKey not implemented")
}

// RegisterIdentityServer registers srv on s.
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&Identity_ServiceDesc, srv)
}

// Identity_ServiceDesc is the grpc.ServiceDesc for the Identity service.
var Identity_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", IdentityServer.Register),
		unary("Login", IdentityServer.Login),
		unary("Refresh", IdentityServer.Refresh),
		unary("Verify", IdentityServer.Verify),
		unary("Logout", IdentityServer.Logout),
		unary("UpdateEmail", IdentityServer.UpdateEmail),
		unary("PublicKey", IdentityServer.PublicKey),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authsync/v1/identity",
}

func unary[Req, Resp any](method string, call func(IdentityServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if ic == nil {
				return call(srv.(IdentityServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(IdentityServer), ctx, req.(*Req))
			}
			return ic(ctx, in, info, handler)
		},
	}
}
