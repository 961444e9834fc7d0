package auth

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// authenticates the bearer token in incoming metadata and stores the
// resolved user and claims in the request context.
//
// Any failure returns codes.Unauthenticated with a generic message, the
// gRPC shape of the uniform 401.
func UnaryServerInterceptor(authenticator *Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, authenticator)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns the stream-side counterpart of
// [UnaryServerInterceptor], wrapping the stream so handlers see the
// enriched context.
func StreamServerInterceptor(authenticator *Authenticator) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), authenticator)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that
// propagates the authenticated user from the context into outgoing
// metadata, so internal services can attribute the call without a second
// account lookup.
//
// Without a user in the context the call proceeds unannotated; downstream
// authentication decides whether that is acceptable.
func UnaryClientInterceptor(serviceName string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx = propagateUserToGRPC(ctx, serviceName)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns the stream-side counterpart of
// [UnaryClientInterceptor].
func StreamClientInterceptor(serviceName string) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx = propagateUserToGRPC(ctx, serviceName)
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// authenticateGRPC validates the bearer token from incoming metadata and
// enriches the context with the user and claims.
func authenticateGRPC(ctx context.Context, authenticator *Authenticator) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	var raw string
	if values := md.Get(MetadataAuthorization); len(values) > 0 {
		raw = bearerValue(values[0])
	}

	user, claims, err := authenticator.Authenticate(ctx, raw)
	if err != nil {
		// The authenticator already collapsed the cause and logged it.
		return ctx, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	ctx = ContextWithUser(ctx, user)
	ctx = ContextWithClaims(ctx, claims)
	return ctx, nil
}

// propagateUserToGRPC copies the context user into outgoing metadata.
func propagateUserToGRPC(ctx context.Context, serviceName string) context.Context {
	user, ok := UserFromContext(ctx)
	if !ok {
		return ctx
	}

	profile, err := SerializeUserProfile(user)
	if err != nil {
		// Propagation failure must not block the outgoing call; the
		// downstream service falls back to its own resolution.
		slog.WarnContext(ctx, "auth: serializing user profile for propagation failed",
			"user", user.ID, "error", err)
		return ctx
	}

	pairs := []string{
		MetadataUserID, user.ID,
		MetadataCallerService, serviceName,
	}
	if profile != "" {
		pairs = append(pairs, MetadataUserProfile, profile)
	}
	md := metadata.Pairs(pairs...)

	if existing, ok := metadata.FromOutgoingContext(ctx); ok {
		md = metadata.Join(existing, md)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

// wrappedServerStream overrides Context so stream handlers see the
// identity added by the interceptor.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// bearerValue strips a "Bearer " prefix from a metadata value,
// case-insensitively.
func bearerValue(v string) string {
	const prefix = "bearer "
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return v[len(prefix):]
}
