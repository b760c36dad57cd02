package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsReadOnlyMethod(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{"/grpc.health.v1.Health/Check", true},
		{"/grpc.health.v1.Health/List", true},
		{"/grpc.health.v1.Health/Watch", true},
		{"/grpc.health.v1.Health/SetServingStatus", false},
		{"/sentinel.Admin/Restart", false},
		{"Check", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, isReadOnlyMethod(tt.method))
		})
	}
}

func TestReadOnlyInterceptor(t *testing.T) {
	interceptor := ReadOnlyInterceptor()
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/sentinel.Admin/Restart"}, handler)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}
