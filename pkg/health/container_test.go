package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/runtime/runtimetest"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestContainerChecker(t *testing.T) {
	rt := runtimetest.New()
	rt.SetContainer(types.ContainerInfo{Name: "no-healthcheck", Status: types.ContainerStatusRunning})
	rt.SetContainer(types.ContainerInfo{Name: "healthy", Status: types.ContainerStatusRunning, Health: types.HealthHealthy})
	rt.SetContainer(types.ContainerInfo{Name: "unhealthy", Status: types.ContainerStatusRunning, Health: types.HealthUnhealthy})
	rt.SetContainer(types.ContainerInfo{Name: "starting", Status: types.ContainerStatusRunning, Health: types.HealthStarting})
	rt.SetContainer(types.ContainerInfo{Name: "exited", Status: types.ContainerStatusExited})

	tests := []struct {
		name        string
		wantHealthy bool
		wantFailure types.FailureKind
	}{
		{"no-healthcheck", true, types.FailureNone},
		{"healthy", true, types.FailureNone},
		{"unhealthy", false, types.FailureProtocolError},
		{"starting", false, types.FailureProtocolError},
		{"exited", false, types.FailureUnknown},
		{"absent", false, types.FailureNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewContainerChecker(rt, tt.name).Check(context.Background())
			assert.Equal(t, tt.wantHealthy, result.Healthy, result.Message)
			assert.Equal(t, tt.wantFailure, result.Failure)
		})
	}
}

func TestContainerChecker_RuntimeUnavailable(t *testing.T) {
	rt := runtimetest.New()
	rt.SetContainer(types.ContainerInfo{Name: "pihole_primary", Status: types.ContainerStatusRunning})

	rt.SetError("get", errors.New("Cannot connect to the Docker daemon"))
	result := NewContainerChecker(rt, "pihole_primary").Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Equal(t, types.FailureRuntime, result.Failure)

	// A daemon that never answers is a runtime problem too
	rt.SetError("get", nil)
	rt.Block("get", true)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result = NewContainerChecker(rt, "pihole_primary").Check(ctx)
	assert.Equal(t, types.FailureRuntime, result.Failure)

	// Absence stays a property of the container
	rt.Block("get", false)
	result = NewContainerChecker(rt, "unbound").Check(context.Background())
	assert.Equal(t, types.FailureNotFound, result.Failure)
}
