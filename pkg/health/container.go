package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/sentinel/pkg/runtime"
	"github.com/cuemby/sentinel/pkg/types"
)

// ContainerInspector is the slice of the runtime port the container check needs
type ContainerInspector interface {
	GetContainer(ctx context.Context, name string) (*types.ContainerInfo, error)
}

// ContainerChecker passes when the container is running and its health
// check, if it has one, reports healthy.
type ContainerChecker struct {
	Name    string
	Runtime ContainerInspector
}

// NewContainerChecker creates a new container state checker
func NewContainerChecker(rt ContainerInspector, name string) *ContainerChecker {
	return &ContainerChecker{Name: name, Runtime: rt}
}

// Check performs the container health check
func (c *ContainerChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if c.Runtime == nil {
		return failed(start, types.FailureUnknown, "no container runtime configured")
	}

	info, err := c.Runtime.GetContainer(ctx, c.Name)
	if errors.Is(err, runtime.ErrNotFound) {
		return failed(start, types.FailureNotFound, fmt.Sprintf("inspect failed: %v", err))
	}
	if err != nil {
		return failed(start, types.FailureRuntime, fmt.Sprintf("inspect failed: %v", err))
	}

	if info.Status != types.ContainerStatusRunning {
		return failed(start, types.FailureUnknown, fmt.Sprintf("container is %s", info.Status))
	}

	switch info.Health {
	case types.HealthNone:
		return passed(start, "running (no health check)")
	case types.HealthHealthy:
		return passed(start, "running and healthy")
	default:
		return failed(start, types.FailureProtocolError, fmt.Sprintf("container unhealthy: %s", info.Health))
	}
}

// Type returns the health check type
func (c *ContainerChecker) Type() types.TargetKind {
	return types.TargetKindContainer
}
