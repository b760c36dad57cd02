package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/nxadm/tail"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

const (
	// DefaultNamespace is the containerd namespace sentinel looks in
	DefaultNamespace = "sentinel"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// LogPathAnnotation overrides where a container's task output is written
	LogPathAnnotation = "sentinel.log-path"

	stopTimeout = 10 * time.Second
)

// ContainerdRuntime implements Runtime using containerd. Task output is
// written to a log file per container, which StreamLogs follows.
// containerd has no network API so network operations are unsupported.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
	logDir    string
}

// NewContainerdRuntime creates a new containerd runtime client
func NewContainerdRuntime(socketPath, namespace, logDir string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:    client,
		namespace: namespace,
		logDir:    logDir,
	}, nil
}

// Close closes the containerd client connection
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListContainers returns all container IDs in the namespace
func (r *ContainerdRuntime) ListContainers(ctx context.Context) ([]string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	containers, err := r.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID())
	}

	return ids, nil
}

// GetContainer maps the container's task state onto ContainerInfo.
// containerd has no health checks, so Health is always empty.
func (r *ContainerdRuntime) GetContainer(ctx context.Context, name string) (*types.ContainerInfo, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.load(ctx, name)
	if err != nil {
		return nil, err
	}

	info := &types.ContainerInfo{Name: name, ID: container.ID()}

	task, err := container.Task(ctx, nil)
	if err != nil {
		// No task means the container was created but never started
		info.Status = types.ContainerStatusCreated
		return info, nil
	}

	status, err := task.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	switch status.Status {
	case containerd.Running:
		info.Status = types.ContainerStatusRunning
	case containerd.Created:
		info.Status = types.ContainerStatusCreated
	case containerd.Paused, containerd.Pausing:
		info.Status = types.ContainerStatusPaused
	case containerd.Stopped:
		info.Status = types.ContainerStatusExited
	default:
		info.Status = types.ContainerStatusUnknown
	}

	return info, nil
}

// Restart stops the current task (SIGTERM, then SIGKILL after a timeout)
// and starts a new one writing to the container's log file.
func (r *ContainerdRuntime) Restart(ctx context.Context, name string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.load(ctx, name)
	if err != nil {
		return err
	}

	if task, err := container.Task(ctx, nil); err == nil {
		if err := stopTask(ctx, task); err != nil {
			return err
		}
	}

	logPath, err := r.logPath(ctx, container)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	task, err := container.NewTask(ctx, cio.LogFile(logPath))
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	return nil
}

func stopTask(ctx context.Context, task containerd.Task) error {
	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("failed to wait for task: %w", err)
	}

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to kill task: %w", err)
	}

	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to force kill task: %w", err)
		}
		<-statusC
	}

	if _, err := task.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// StreamLogs follows the container's log file from its current end
func (r *ContainerdRuntime) StreamLogs(ctx context.Context, name string) (io.ReadCloser, error) {
	nsCtx := namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.load(nsCtx, name)
	if err != nil {
		return nil, err
	}

	logPath, err := r.logPath(nsCtx, container)
	if err != nil {
		return nil, err
	}

	t, err := tail.TailFile(logPath, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to follow %s: %w", logPath, err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer t.Cleanup()
		for {
			select {
			case <-ctx.Done():
				t.Stop()
				pw.CloseWithError(ctx.Err())
				return
			case line, ok := <-t.Lines:
				if !ok {
					pw.CloseWithError(t.Err())
					return
				}
				if line.Err != nil {
					continue
				}
				if _, err := io.WriteString(pw, line.Text+"\n"); err != nil {
					// Reader closed
					t.Stop()
					return
				}
			}
		}
	}()

	return pr, nil
}

// GetNetwork is not available on containerd
func (r *ContainerdRuntime) GetNetwork(ctx context.Context, name string) (*types.NetworkDescriptor, error) {
	return nil, ErrUnsupported
}

func (r *ContainerdRuntime) RemoveNetwork(ctx context.Context, name string) error {
	return ErrUnsupported
}

func (r *ContainerdRuntime) CreateNetwork(ctx context.Context, desc types.NetworkDescriptor) error {
	return ErrUnsupported
}

func (r *ContainerdRuntime) load(ctx context.Context, name string) (containerd.Container, error) {
	container, err := r.client.LoadContainer(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load container %s: %w", name, err)
	}
	return container, nil
}

// logPath reads the log path annotation from the OCI spec, falling back to
// <logDir>/<id>.log.
func (r *ContainerdRuntime) logPath(ctx context.Context, container containerd.Container) (string, error) {
	var spec *specs.Spec
	spec, err := container.Spec(ctx)
	if err != nil && !errors.Is(err, errdefs.ErrNotFound) {
		return "", fmt.Errorf("failed to read spec for %s: %w", container.ID(), err)
	}
	if spec != nil {
		if p, ok := spec.Annotations[LogPathAnnotation]; ok && p != "" {
			return p, nil
		}
	}

	if r.logDir == "" {
		return "", fmt.Errorf("container %s has no %s annotation and no log directory is configured", container.ID(), LogPathAnnotation)
	}
	return filepath.Join(r.logDir, container.ID()+".log"), nil
}
