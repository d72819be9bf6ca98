package grpc

import (
	"context"
	"strings"

	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/logging"
	"github.com/realforestry/hortus-auth/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Authorizer checks access tokens. *services.AuthService satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, accessToken string) (*auth.Principal, error)
}

// PrincipalFromContext returns the principal stored by AccessTokenInterceptor.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok
}

// AccessTokenInterceptor requires a valid access token on every unary call
// except publicMethods.
func AccessTokenInterceptor(a Authorizer, l logging.Logger, publicMethods ...string) grpc.UnaryServerInterceptor {
	public := make(map[string]struct{}, len(publicMethods))
	for _, m := range publicMethods {
		public[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := public[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		accessToken := tokenFromMetadata(ctx)
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		p, err := a.Authorize(ctx, accessToken)
		if err != nil {
			l.Debug(ctx, "rejected access token", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Unauthenticated, common.KindUnauthorized.Message())
		}

		return handler(context.WithValue(ctx, principalKey, p), req)
	}
}

func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return values[0]
	}
	if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 && strings.HasPrefix(values[0], common.BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(values[0], common.BearerPrefix))
	}
	return ""
}
