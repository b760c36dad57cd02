// Package runtimetest provides an in-memory runtime.Runtime for tests.
package runtimetest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/sentinel/pkg/runtime"
	"github.com/cuemby/sentinel/pkg/types"
)

// Fake is a scriptable in-memory runtime. Zero value is not usable; use New.
type Fake struct {
	mu         sync.Mutex
	containers map[string]*types.ContainerInfo
	networks   map[string]*types.NetworkDescriptor
	logs       map[string][]*io.PipeWriter

	// Errors injected per operation name ("list", "get", "restart",
	// "logs", "get-network", "remove-network", "create-network")
	Errors map[string]error

	// Operations that hang until their context is done
	blocked map[string]bool

	Restarts       map[string]int
	NetworkCreates int
	NetworkRemoves int
	LogOpens       map[string]int
}

var _ runtime.Runtime = (*Fake)(nil)

// New returns an empty fake runtime
func New() *Fake {
	return &Fake{
		containers: make(map[string]*types.ContainerInfo),
		networks:   make(map[string]*types.NetworkDescriptor),
		logs:       make(map[string][]*io.PipeWriter),
		Errors:     make(map[string]error),
		blocked:    make(map[string]bool),
		Restarts:   make(map[string]int),
		LogOpens:   make(map[string]int),
	}
}

// SetContainer adds or replaces a container
func (f *Fake) SetContainer(info types.ContainerInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := info
	f.containers[info.Name] = &c
}

// RemoveContainer makes a container absent
func (f *Fake) RemoveContainer(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, name)
}

// SetNetwork adds or replaces a network
func (f *Fake) SetNetwork(desc types.NetworkDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := desc
	f.networks[desc.Name] = &d
}

// SetError injects err for op; nil clears it
func (f *Fake) SetError(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errors, op)
		return
	}
	f.Errors[op] = err
}

// Block makes op wait for its context to end and return the context error,
// like a daemon that accepts the request and never answers. Unblock with
// on set to false.
func (f *Fake) Block(op string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on {
		f.blocked[op] = true
		return
	}
	delete(f.blocked, op)
}

func (f *Fake) wait(ctx context.Context, op string) error {
	f.mu.Lock()
	blocked := f.blocked[op]
	f.mu.Unlock()
	if !blocked {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

// RestartCount returns how many times name was restarted
func (f *Fake) RestartCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Restarts[name]
}

// LogOpenCount returns how many log streams were opened for name
func (f *Fake) LogOpenCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LogOpens[name]
}

// OpenStreams returns how many log streams of name are currently open
func (f *Fake) OpenStreams(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs[name])
}

// NetworkCreateCount returns how many networks were created
func (f *Fake) NetworkCreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.NetworkCreates
}

// WriteLog sends a line to every open log stream of name. It blocks until
// a reader consumes the line.
func (f *Fake) WriteLog(name, line string) {
	f.mu.Lock()
	writers := append([]*io.PipeWriter(nil), f.logs[name]...)
	f.mu.Unlock()

	for _, w := range writers {
		_, _ = io.WriteString(w, line+"\n")
	}
}

// CloseLogs ends every open log stream of name with EOF
func (f *Fake) CloseLogs(name string) {
	f.mu.Lock()
	writers := f.logs[name]
	delete(f.logs, name)
	f.mu.Unlock()

	for _, w := range writers {
		w.Close()
	}
}

func (f *Fake) ListContainers(ctx context.Context) ([]string, error) {
	if err := f.wait(ctx, "list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["list"]; err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.containers))
	for name := range f.containers {
		names = append(names, name)
	}
	return names, nil
}

func (f *Fake) GetContainer(ctx context.Context, name string) (*types.ContainerInfo, error) {
	if err := f.wait(ctx, "get"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["get"]; err != nil {
		return nil, err
	}
	c, ok := f.containers[name]
	if !ok {
		return nil, fmt.Errorf("container %s: %w", name, runtime.ErrNotFound)
	}
	out := *c
	return &out, nil
}

// Restart counts the restart and marks the container running and healthy
func (f *Fake) Restart(ctx context.Context, name string) error {
	if err := f.wait(ctx, "restart"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["restart"]; err != nil {
		return err
	}
	c, ok := f.containers[name]
	if !ok {
		return fmt.Errorf("container %s: %w", name, runtime.ErrNotFound)
	}
	f.Restarts[name]++
	c.Status = types.ContainerStatusRunning
	if c.Health != types.HealthNone {
		c.Health = types.HealthHealthy
	}
	return nil
}

func (f *Fake) StreamLogs(ctx context.Context, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.LogOpens[name]++
	f.mu.Unlock()
	if err := f.wait(ctx, "logs"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["logs"]; err != nil {
		return nil, err
	}
	if _, ok := f.containers[name]; !ok {
		return nil, fmt.Errorf("container %s: %w", name, runtime.ErrNotFound)
	}
	pr, pw := io.Pipe()
	f.logs[name] = append(f.logs[name], pw)
	go func() {
		<-ctx.Done()
		pw.CloseWithError(ctx.Err())
		f.dropStream(name, pw)
	}()
	return pr, nil
}

func (f *Fake) dropStream(name string, pw *io.PipeWriter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writers := f.logs[name]
	for i, w := range writers {
		if w == pw {
			f.logs[name] = append(writers[:i:i], writers[i+1:]...)
			return
		}
	}
}

func (f *Fake) GetNetwork(ctx context.Context, name string) (*types.NetworkDescriptor, error) {
	if err := f.wait(ctx, "get-network"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["get-network"]; err != nil {
		return nil, err
	}
	n, ok := f.networks[name]
	if !ok {
		return nil, fmt.Errorf("network %s: %w", name, runtime.ErrNotFound)
	}
	out := *n
	return &out, nil
}

func (f *Fake) RemoveNetwork(ctx context.Context, name string) error {
	if err := f.wait(ctx, "remove-network"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["remove-network"]; err != nil {
		return err
	}
	if _, ok := f.networks[name]; !ok {
		return fmt.Errorf("network %s: %w", name, runtime.ErrNotFound)
	}
	f.NetworkRemoves++
	delete(f.networks, name)
	return nil
}

func (f *Fake) CreateNetwork(ctx context.Context, desc types.NetworkDescriptor) error {
	if err := f.wait(ctx, "create-network"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["create-network"]; err != nil {
		return err
	}
	f.NetworkCreates++
	d := desc
	f.networks[desc.Name] = &d
	return nil
}

func (f *Fake) Close() error { return nil }
