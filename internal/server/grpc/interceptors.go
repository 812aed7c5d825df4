package grpcserver

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/token"
)

// LoggingUnary logs one line per call with the status message as reason,
// never request or response bodies. Caller errors log at Warn and server
// errors at Error.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		st := status.Convert(err)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", st.Code().String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remoteIP(ctx)),
		}
		switch st.Code() {
		case codes.OK:
			log.Info("grpc", fields...)
		case codes.Internal, codes.Unavailable, codes.Unknown, codes.DataLoss:
			log.Error("grpc", append(fields, zap.String("reason", st.Message()))...)
		default:
			log.Warn("grpc", append(fields, zap.String("reason", st.Message()))...)
		}
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// AccessVerifier checks bearer access tokens.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, raw string) (*token.Claims, error)
}

// AuthUnary returns a unary server interceptor that requires a valid access
// token for the listed full method names and puts the subject into ctx.
func AuthUnary(v AccessVerifier, protected ...string) grpc.UnaryServerInterceptor {
	need := make(map[string]struct{}, len(protected))
	for _, m := range protected {
		need[m] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if _, ok := need[info.FullMethod]; !ok {
			return next(ctx, req)
		}
		raw, err := bearerTokenFromMD(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		cl, err := v.VerifyAccess(ctx, raw)
		if err != nil {
			if errs.IsDependencyError(err) {
				return nil, status.Error(codes.Unavailable, string(errs.ReasonUnavailable))
			}
			return nil, status.Error(codes.Unauthenticated, string(errs.ReasonOf(err)))
		}
		id, err := uuid.FromString(cl.Subject)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, string(errs.ReasonInvalid))
		}
		return next(WithUserID(ctx, id), req)
	}
}
