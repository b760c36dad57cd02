package api

import (
	"context"
	"fmt"
	"net"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/types"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DNSService is the gRPC health service name that tracks resolver availability
const DNSService = "dns"

// ResultSource supplies the latest probe result per target
type ResultSource interface {
	LastResults() map[string]types.ProbeResult
}

// GRPCHealth serves grpc.health.v1. Service "dns" is SERVING while an active
// resolver exists; each target also has its own entry named after it.
type GRPCHealth struct {
	health *health.Server
}

// NewGRPCHealth creates the health service with every target NOT_SERVING
// until the first tick reports.
func NewGRPCHealth(targets []types.Target) *GRPCHealth {
	g := &GRPCHealth{health: health.NewServer()}
	g.health.SetServingStatus(DNSService, healthpb.HealthCheckResponse_NOT_SERVING)
	for _, t := range targets {
		g.health.SetServingStatus(t.Name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return g
}

// Update applies a failover state and the probe results behind it
func (g *GRPCHealth) Update(state types.FailoverState, results map[string]types.ProbeResult) {
	if state.NoTargetsAvailable || state.Active.Name == "" {
		g.health.SetServingStatus(DNSService, healthpb.HealthCheckResponse_NOT_SERVING)
	} else {
		g.health.SetServingStatus(DNSService, healthpb.HealthCheckResponse_SERVING)
	}

	for name, result := range results {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if result.Success {
			status = healthpb.HealthCheckResponse_SERVING
		}
		g.health.SetServingStatus(name, status)
	}
}

// Follow returns a tick listener that keeps the service in sync with src
func (g *GRPCHealth) Follow(src ResultSource) func(types.FailoverState) {
	return func(state types.FailoverState) {
		g.Update(state, src.LastResults())
	}
}

// Server exposes the underlying health server for registration
func (g *GRPCHealth) Server() healthpb.HealthServer {
	return g.health
}

// Serve listens on addr until ctx is done
func (g *GRPCHealth) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return g.ServeListener(ctx, lis)
}

// ServeListener serves on an existing listener until ctx is done
func (g *GRPCHealth) ServeListener(ctx context.Context, lis net.Listener) error {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor, ReadOnlyInterceptor()),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	)
	healthpb.RegisterHealthServer(server, g.health)
	grpc_prometheus.Register(server)

	go func() {
		<-ctx.Done()
		g.health.Shutdown()
		server.GracefulStop()
	}()

	logger := log.WithComponent("api")
	logger.Info().Str("address", lis.Addr().String()).Msg("gRPC health server listening")
	if err := server.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
