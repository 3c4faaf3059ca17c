package main

import (
	"context"
	"strings"

	v1 "github.com/PaulBabatuyi/resonance/api/v1"
	"github.com/PaulBabatuyi/resonance/internal/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// publicMethods don't require authentication.
var publicMethods = map[string]bool{
	v1.Resonance_Register_FullMethodName: true,
	v1.Resonance_Login_FullMethodName:    true,
}

// limitedMethods are rate limited per client.
var limitedMethods = map[string]bool{
	v1.Resonance_Register_FullMethodName:    true,
	v1.Resonance_Login_FullMethodName:       true,
	v1.Resonance_CreateMatch_FullMethodName: true,
	v1.Resonance_SendMessage_FullMethodName: true,
	v1.Resonance_ReportUser_FullMethodName:  true,
}

// getClaimsFromContext extracts auth claims from the context, if present.
func getClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	return auth.ClaimsFromContext(ctx)
}

// authenticate verifies the bearer token in ctx's metadata.
func authenticate(ctx context.Context, j *auth.JWTManager) (*auth.Claims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, status.Errorf(codes.Unauthenticated, "missing authorization header")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeaders[0], "Bearer"))
	if token == "" {
		return nil, status.Errorf(codes.Unauthenticated, "invalid token")
	}

	claims, err := j.VerifyToken(token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
	}
	return claims, nil
}

// authUnaryInterceptor returns a UnaryServerInterceptor that enforces JWT authentication
// for all methods except publicMethods.
func authUnaryInterceptor(j *auth.JWTManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		claims, err := authenticate(ctx, j)
		if err != nil {
			return nil, err
		}
		return handler(auth.WithClaims(ctx, claims), req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(j *auth.JWTManager) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if publicMethods[info.FullMethod] {
			return handler(srv, ss)
		}
		claims, err := authenticate(ss.Context(), j)
		if err != nil {
			return err
		}
		wrapped := grpcmiddlewareServerStream{ServerStream: ss, ctx: auth.WithClaims(ss.Context(), claims)}
		return handler(srv, wrapped)
	}
}

// grpcmiddlewareServerStream wraps grpc.ServerStream to override Context()
type grpcmiddlewareServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context (with claims)
func (g grpcmiddlewareServerStream) Context() context.Context { return g.ctx }
