package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/rs/zerolog"
	"github.com/tevino/abool"
	"golang.org/x/sync/errgroup"
)

// Task is a long-running loop. It must return once ctx is done.
type Task func(ctx context.Context) error

// Supervisor runs the control loops side by side under one context.
// A failing loop is logged and left stopped; it never takes the others
// down unless it was started with GoCritical.
type Supervisor struct {
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	stopping *abool.AtomicBool

	mu    sync.Mutex
	names []string

	logger zerolog.Logger
}

// New creates a supervisor whose tasks stop when parent is done or Stop is called
func New(parent context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	group, gctx := errgroup.WithContext(ctx)
	return &Supervisor{
		ctx:      gctx,
		cancel:   cancel,
		group:    group,
		stopping: abool.New(),
		logger:   log.WithComponent("supervisor"),
	}
}

// Context is cancelled when the supervisor stops
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Go starts fn. Its error or panic is logged and swallowed.
func (s *Supervisor) Go(name string, fn Task) bool {
	return s.start(name, fn, false)
}

// GoCritical starts fn. If it fails, every other task is cancelled and Wait
// returns the error.
func (s *Supervisor) GoCritical(name string, fn Task) bool {
	return s.start(name, fn, true)
}

func (s *Supervisor) start(name string, fn Task, critical bool) bool {
	if s.stopping.IsSet() {
		return false
	}

	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()

	logger := s.logger.With().Str("task", name).Logger()
	s.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s panicked: %v", name, r)
				logger.Error().Interface("panic", r).Msg("Task panicked")
			}
			if err != nil && !critical {
				err = nil
			}
		}()

		logger.Debug().Msg("Task started")
		if err := fn(s.ctx); err != nil && !s.stopping.IsSet() {
			logger.Error().Err(err).Msg("Task exited with error")
			return fmt.Errorf("task %s: %w", name, err)
		}
		logger.Debug().Msg("Task stopped")
		return nil
	})
	return true
}

// Names returns the started task names, sorted
func (s *Supervisor) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.names))
	copy(names, s.names)
	sort.Strings(names)
	return names
}

// Stop cancels every task. It does not wait; call Wait for that.
func (s *Supervisor) Stop() {
	if s.stopping.SetToIf(false, true) {
		s.logger.Info().Msg("Stopping tasks")
	}
	s.cancel()
}

// Stopping reports whether Stop has been called
func (s *Supervisor) Stopping() bool {
	return s.stopping.IsSet()
}

// Wait blocks until every task has returned
func (s *Supervisor) Wait() error {
	err := s.group.Wait()
	s.cancel()
	return err
}
