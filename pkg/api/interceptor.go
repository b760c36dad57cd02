package api

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReadOnlyInterceptor creates a gRPC unary interceptor that only allows
// health queries. Sentinel's gRPC listener is a status surface, nothing can be
// changed through it.
func ReadOnlyInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !isReadOnlyMethod(info.FullMethod) {
			return nil, status.Errorf(codes.PermissionDenied, "method %s is not allowed", info.FullMethod)
		}
		return handler(ctx, req)
	}
}

// isReadOnlyMethod checks if a gRPC method is a health query
func isReadOnlyMethod(method string) bool {
	// e.g. "/grpc.health.v1.Health/Check" -> service "grpc.health.v1.Health", method "Check"
	parts := strings.Split(method, "/")
	if len(parts) != 3 {
		return false
	}

	if parts[1] != "grpc.health.v1.Health" {
		return false
	}

	switch parts[2] {
	case "Check", "List", "Watch":
		return true
	}
	return false
}
