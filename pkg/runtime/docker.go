package runtime

import (
	"context"
	"fmt"
	"io"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerRuntime implements Runtime against the Docker Engine API
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime connects to the Docker daemon. An empty host uses
// DOCKER_HOST or the default local socket.
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &DockerRuntime{client: cli}, nil
}

// Close closes the Docker client connection
func (r *DockerRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListContainers returns the names of all containers, running or not
func (r *DockerRuntime) ListContainers(ctx context.Context) ([]string, error) {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	names := make([]string, 0, len(containers))
	for _, c := range containers {
		for _, n := range c.Names {
			// Docker reports names with a leading slash
			if len(n) > 0 && n[0] == '/' {
				n = n[1:]
			}
			names = append(names, n)
		}
	}
	return names, nil
}

// GetContainer inspects a container by name
func (r *DockerRuntime) GetContainer(ctx context.Context, name string) (*types.ContainerInfo, error) {
	inspect, err := r.client.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	info := &types.ContainerInfo{
		Name:   name,
		ID:     inspect.ID,
		Status: types.ContainerStatusUnknown,
	}
	if inspect.State != nil {
		info.Status = dockerStatus(inspect.State.Status)
		if inspect.State.Health != nil {
			info.Health = types.HealthStatus(inspect.State.Health.Status)
		}
	}
	return info, nil
}

// Restart restarts a container using the daemon's default stop timeout
func (r *DockerRuntime) Restart(ctx context.Context, name string) error {
	if err := r.client.ContainerRestart(ctx, name, container.StopOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to restart container %s: %w", name, err)
	}
	return nil
}

// StreamLogs follows stdout and stderr from now on. The multiplexed stream
// is split into a single plain text reader.
func (r *DockerRuntime) StreamLogs(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := r.client.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       "0",
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stream logs for %s: %w", name, err)
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, rc)
		rc.Close()
		pw.CloseWithError(err)
	}()

	return &pipeReader{PipeReader: pr, src: rc}, nil
}

// GetNetwork inspects a network and reports its first IPAM pool
func (r *DockerRuntime) GetNetwork(ctx context.Context, name string) (*types.NetworkDescriptor, error) {
	inspect, err := r.client.NetworkInspect(ctx, name, network.InspectOptions{})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, fmt.Errorf("network %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to inspect network %s: %w", name, err)
	}

	desc := &types.NetworkDescriptor{
		Name:            inspect.Name,
		Driver:          inspect.Driver,
		ParentInterface: inspect.Options["parent"],
	}
	if len(inspect.IPAM.Config) > 0 {
		desc.Subnet = inspect.IPAM.Config[0].Subnet
		desc.Gateway = inspect.IPAM.Config[0].Gateway
	}
	return desc, nil
}

// RemoveNetwork deletes a network
func (r *DockerRuntime) RemoveNetwork(ctx context.Context, name string) error {
	if err := r.client.NetworkRemove(ctx, name); err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("network %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to remove network %s: %w", name, err)
	}
	return nil
}

// CreateNetwork creates a network with a single IPAM pool
func (r *DockerRuntime) CreateNetwork(ctx context.Context, desc types.NetworkDescriptor) error {
	opts := network.CreateOptions{
		Driver: desc.Driver,
		IPAM: &network.IPAM{
			Config: []network.IPAMConfig{{
				Subnet:  desc.Subnet,
				Gateway: desc.Gateway,
			}},
		},
	}
	if desc.ParentInterface != "" {
		opts.Options = map[string]string{"parent": desc.ParentInterface}
	}

	if _, err := r.client.NetworkCreate(ctx, desc.Name, opts); err != nil {
		return fmt.Errorf("failed to create network %s: %w", desc.Name, err)
	}
	return nil
}

func dockerStatus(s string) types.ContainerStatus {
	switch types.ContainerStatus(s) {
	case types.ContainerStatusRunning,
		types.ContainerStatusCreated,
		types.ContainerStatusRestarting,
		types.ContainerStatusPaused,
		types.ContainerStatusExited,
		types.ContainerStatusDead:
		return types.ContainerStatus(s)
	}
	return types.ContainerStatusUnknown
}

// pipeReader closes the daemon stream along with the pipe so the copy
// goroutine exits when the caller is done.
type pipeReader struct {
	*io.PipeReader
	src io.Closer
}

func (p *pipeReader) Close() error {
	p.src.Close()
	return p.PipeReader.Close()
}
