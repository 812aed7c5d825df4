package identityv1

import (
	"context"

	"google.golang.org/grpc"
)

// IdentityClient is the client API for the Identity service.
type IdentityClient struct {
	cc grpc.ClientConnInterface
}

// NewIdentityClient wraps a connection. Every call is sent with the JSON content-subtype.
func NewIdentityClient(cc grpc.ClientConnInterface) *IdentityClient {
	return &IdentityClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IdentityClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, Identity_Register_FullMethodName, in, opts)
}

func (c *IdentityClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, Identity_Login_FullMethodName, in, opts)
}

func (c *IdentityClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*RefreshResponse, error) {
	return invoke[RefreshResponse](ctx, c.cc, Identity_Refresh_FullMethodName, in, opts)
}

func (c *IdentityClient) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (*VerifyResponse, error) {
	return invoke[VerifyResponse](ctx, c.cc, Identity_Verify_FullMethodName, in, opts)
}

func (c *IdentityClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, Identity_Logout_FullMethodName, in, opts)
}

func (c *IdentityClient) UpdateEmail(ctx context.Context, in *UpdateEmailRequest, opts ...grpc.CallOption) (*UpdateEmailResponse, error) {
	return invoke[UpdateEmailResponse](ctx, c.cc, Identity_UpdateEmail_FullMethodName, in, opts)
}

func (c *IdentityClient) PublicKey(ctx context.Context, in *PublicKeyRequest, opts ...grpc.CallOption) (*PublicKeyResponse, error) {
	return invoke[PublicKeyResponse](ctx, c.cc, Identity_PublicKey_FullMethodName, in, opts)
}
