package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

var testTargets = []types.Target{
	{Name: "primary", Address: "192.168.8.251", Kind: types.TargetKindDNS, Priority: 1},
	{Name: "cloud1", Address: "8.8.8.8", Kind: types.TargetKindDNS, Priority: 5},
}

func check(t *testing.T, g *GRPCHealth, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := g.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestGRPCHealth_InitiallyNotServing(t *testing.T) {
	g := NewGRPCHealth(testTargets)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, g, DNSService))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, g, "primary"))
}

func TestGRPCHealth_Update(t *testing.T) {
	g := NewGRPCHealth(testTargets)

	g.Update(types.FailoverState{Active: testTargets[1]}, map[string]types.ProbeResult{
		"primary": {Success: false},
		"cloud1":  {Success: true},
	})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, g, DNSService))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, g, "primary"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, g, "cloud1"))

	g.Update(types.FailoverState{Active: testTargets[1], NoTargetsAvailable: true}, map[string]types.ProbeResult{
		"primary": {Success: false},
		"cloud1":  {Success: false},
	})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, g, DNSService))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, g, "cloud1"))
}

type staticResults map[string]types.ProbeResult

func (s staticResults) LastResults() map[string]types.ProbeResult { return s }

func TestGRPCHealth_ServeOverNetwork(t *testing.T) {
	g := NewGRPCHealth(testTargets)
	g.Follow(staticResults{"primary": {Success: true}})(types.FailoverState{Active: testTargets[0]})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.ServeListener(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	resp, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{Service: DNSService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	_, err = healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{Service: "unknown"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	cancel()
	assert.NoError(t, <-done)
}
