package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cuemby/sentinel/pkg/config"
	"github.com/cuemby/sentinel/pkg/types"
)

var (
	// ErrNotFound is returned when a container or network does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnsupported is returned by drivers that cannot perform an operation
	ErrUnsupported = errors.New("operation not supported by runtime driver")
)

// Runtime is the container runtime port used by the reconciler, the log
// analyzer and the container health checker.
type Runtime interface {
	// ListContainers returns the names of every container the runtime knows
	ListContainers(ctx context.Context) ([]string, error)

	// GetContainer returns the observed state of one container or ErrNotFound
	GetContainer(ctx context.Context, name string) (*types.ContainerInfo, error)

	Restart(ctx context.Context, name string) error

	// StreamLogs follows new output of a container until ctx is cancelled or
	// the returned reader is closed.
	StreamLogs(ctx context.Context, name string) (io.ReadCloser, error)

	GetNetwork(ctx context.Context, name string) (*types.NetworkDescriptor, error)
	RemoveNetwork(ctx context.Context, name string) error
	CreateNetwork(ctx context.Context, desc types.NetworkDescriptor) error

	Close() error
}

// New builds the runtime selected by cfg.Driver
func New(cfg config.RuntimeConfig) (Runtime, error) {
	switch cfg.Driver {
	case "", "docker":
		return NewDockerRuntime(cfg.DockerHost)
	case "containerd":
		return NewContainerdRuntime(cfg.Socket, cfg.Namespace, cfg.LogDir)
	default:
		return nil, fmt.Errorf("unknown runtime driver %q", cfg.Driver)
	}
}
