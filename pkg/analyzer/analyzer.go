package analyzer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/runtime"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
)

const (
	maxSnippet     = 200
	maxLineBytes   = 1 << 20
	restartTimeout = 60 * time.Second
)

var (
	errIdle        = errors.New("log stream idle")
	errOpenTimeout = errors.New("log stream open timed out")
)

// Limiter grants or refuses a preventive restart
type Limiter interface {
	TryConsume(key string) bool
}

// Config tunes risk evaluation and stream handling
type Config struct {
	WarningRate      float64
	CriticalRate     float64
	Window           time.Duration
	BurstWindow      time.Duration
	Cooldown         time.Duration
	HistoryCapacity  int
	ReconnectBackoff time.Duration
	IdleTimeout      time.Duration
	OpenTimeout      time.Duration
	// DegradedAfter is the number of consecutive failed stream opens that
	// reports the runtime degraded
	DegradedAfter int
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{
		WarningRate:      5,
		CriticalRate:     10,
		Window:           5 * time.Minute,
		BurstWindow:      60 * time.Second,
		Cooldown:         5 * time.Minute,
		HistoryCapacity:  1000,
		ReconnectBackoff: 15 * time.Second,
		IdleTimeout:      10 * time.Minute,
		OpenTimeout:      30 * time.Second,
		DegradedAfter:    3,
	}
}

// Prediction is a fired failure prediction
type Prediction struct {
	Container string
	Category  types.ErrorCategory
	Risk      Risk
	At        time.Time
}

// Analyzer classifies container log lines, predicts failures and triggers
// preventive restarts.
type Analyzer struct {
	runtime    runtime.Runtime
	limiter    Limiter
	publisher  events.Publisher
	cfg        Config
	signatures []Signature
	now        func() time.Time
	logger     zerolog.Logger

	mu       sync.Mutex
	trackers map[string]*Tracker
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithClock replaces time.Now for observation timestamps
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithSignatures replaces the built-in signatures
func WithSignatures(sigs []Signature) Option {
	return func(a *Analyzer) { a.signatures = sigs }
}

// New creates an analyzer. The limiter must be the one the reconciler uses
// so both restart paths share one budget per container.
func New(rt runtime.Runtime, limiter Limiter, publisher events.Publisher, cfg Config, opts ...Option) *Analyzer {
	def := DefaultConfig()
	if cfg.WarningRate <= 0 {
		cfg.WarningRate = def.WarningRate
	}
	if cfg.CriticalRate <= 0 {
		cfg.CriticalRate = def.CriticalRate
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = def.BurstWindow
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = def.ReconnectBackoff
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.DegradedAfter <= 0 {
		cfg.DegradedAfter = def.DegradedAfter
	}

	a := &Analyzer{
		runtime:    rt,
		limiter:    limiter,
		publisher:  publisher,
		cfg:        cfg,
		signatures: DefaultSignatures(),
		now:        time.Now,
		logger:     log.WithComponent("analyzer"),
		trackers:   make(map[string]*Tracker),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) thresholds() Thresholds {
	return Thresholds{
		Warning:     a.cfg.WarningRate,
		Critical:    a.cfg.CriticalRate,
		Window:      a.cfg.Window,
		BurstWindow: a.cfg.BurstWindow,
		Cooldown:    a.cfg.Cooldown,
	}
}

// tracker returns the tracker for container, creating it on first use
func (a *Analyzer) tracker(container string) *Tracker {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trackers[container]
	if !ok {
		t = NewTracker(container, a.cfg.HistoryCapacity)
		a.trackers[container] = t
	}
	return t
}

// Snapshots returns the state of every tracker, sorted by container
func (a *Analyzer) Snapshots() []TrackerSnapshot {
	a.mu.Lock()
	trackers := make([]*Tracker, 0, len(a.trackers))
	for _, t := range a.trackers {
		trackers = append(trackers, t)
	}
	a.mu.Unlock()

	out := make([]TrackerSnapshot, 0, len(trackers))
	for _, t := range trackers {
		out = append(out, t.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Container < out[j].Container })
	return out
}

// Observe classifies one log line. Non-matching lines are ignored. A matching
// line is recorded and, if it pushes the risk over a threshold outside the
// cooldown, a prediction fires and a preventive restart is attempted.
func (a *Analyzer) Observe(ctx context.Context, container, line string) *Prediction {
	category, ok := Classify(a.signatures, line)
	if !ok {
		return nil
	}

	obs := types.ErrorObservation{
		Container: container,
		Category:  category,
		Timestamp: a.now(),
		Snippet:   truncate(line, maxSnippet),
	}
	metrics.ErrorObservationsTotal.WithLabelValues(container, string(category)).Inc()

	risk, fire := a.tracker(container).Observe(obs, a.thresholds())
	metrics.ErrorRate.WithLabelValues(container).Set(risk.Rate)

	if !fire {
		return nil
	}

	p := &Prediction{
		Container: container,
		Category:  risk.Dominant,
		Risk:      risk,
		At:        obs.Timestamp,
	}
	a.fire(ctx, p, obs.Snippet)
	return p
}

func (a *Analyzer) fire(ctx context.Context, p *Prediction, snippet string) {
	logger := log.WithContainer("analyzer", p.Container)
	metrics.PredictionsTotal.WithLabelValues(p.Container, string(p.Category)).Inc()

	logger.Warn().
		Str("category", string(p.Category)).
		Float64("rate", p.Risk.Rate).
		Int("recent", p.Risk.Recent).
		Msg("Failure predicted")

	a.publish(events.New(events.EventPrediction, events.SeverityWarning, "analyzer",
		fmt.Sprintf("Failure predicted for %s: %s at %.1f errors/min (last: %q)", p.Container, p.Category, p.Risk.Rate, snippet)).
		With("container", p.Container).
		With("category", string(p.Category)))

	if !a.limiter.TryConsume(p.Container) {
		metrics.RestartsRefusedTotal.WithLabelValues(p.Container).Inc()
		logger.Error().Msg("Preventive restart refused, restart budget exhausted")
		a.publish(events.New(events.EventPreventiveRefused, events.SeverityCritical, "analyzer",
			fmt.Sprintf("Preventive restart of %s refused: hourly restart limit reached; manual intervention required", p.Container)).
			With("container", p.Container))
		return
	}

	restartCtx, cancel := context.WithTimeout(ctx, restartTimeout)
	defer cancel()

	if err := a.runtime.Restart(restartCtx, p.Container); err != nil {
		logger.Error().Err(err).Msg("Preventive restart failed")
		a.publish(events.New(events.EventPreventiveFailed, events.SeverityWarning, "analyzer",
			fmt.Sprintf("Preventive restart of %s failed: %v", p.Container, err)).
			With("container", p.Container))
		return
	}

	metrics.ContainerRestartsTotal.WithLabelValues(p.Container, "preventive").Inc()
	logger.Info().Msg("Preventive restart completed")
	a.publish(events.New(events.EventPreventiveRestart, events.SeverityInfo, "analyzer",
		fmt.Sprintf("Preventively restarted %s after %s errors", p.Container, p.Category)).
		With("container", p.Container).
		With("category", string(p.Category)))
}

// Watch follows the logs of container until ctx is cancelled. When the stream
// ends, stays idle too long, cannot be opened or its handling panics, it waits
// ReconnectBackoff and opens a new one.
func (a *Analyzer) Watch(ctx context.Context, container string) error {
	logger := log.WithContainer("analyzer", container)
	logger.Info().Msg("Watching container logs")

	openFailures := 0
	for {
		opened, err := a.followSafe(ctx, container)
		if ctx.Err() != nil {
			logger.Info().Msg("Stopped watching container logs")
			return nil
		}

		if opened {
			if openFailures >= a.cfg.DegradedAfter {
				logger.Info().Msg("Log stream restored")
			}
			openFailures = 0
		} else {
			openFailures++
			if openFailures == a.cfg.DegradedAfter {
				a.streamDegraded(container, openFailures, err)
			}
		}

		metrics.LogStreamReconnectsTotal.WithLabelValues(container).Inc()
		logger.Warn().
			Err(err).
			Int("open_failures", openFailures).
			Dur("backoff", a.cfg.ReconnectBackoff).
			Msg("Log stream interrupted")

		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopped watching container logs")
			return nil
		case <-time.After(a.cfg.ReconnectBackoff):
		}
	}
}

// followSafe runs one follow iteration and turns a panic into an error
func (a *Analyzer) followSafe(ctx context.Context, container string) (opened bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("log handling panicked: %v", r)
			logger := log.WithContainer("analyzer", container)
			logger.Error().Interface("panic", r).Msg("Log worker panicked")
		}
	}()
	err = a.follow(ctx, container, &opened)
	return opened, err
}

func (a *Analyzer) streamDegraded(container string, failures int, err error) {
	msg := fmt.Sprintf("Container runtime degraded: log stream of %s failed to open %d times in a row: %v", container, failures, err)
	logger := log.WithContainer("analyzer", container)
	logger.Error().Int("open_failures", failures).Msg("Log stream unavailable")
	a.publish(events.New(events.EventRuntimeDegraded, events.SeverityDegraded, "analyzer", msg).
		With("container", container).
		With("operation", "logs"))
}

// follow streams one log session. opened is set once the stream is open.
func (a *Analyzer) follow(ctx context.Context, container string, opened *bool) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Only the open is bounded; a healthy stream lives until idle or ctx ends
	openTimer := time.AfterFunc(a.cfg.OpenTimeout, cancel)
	rc, err := a.runtime.StreamLogs(streamCtx, container)
	if !openTimer.Stop() {
		if rc != nil {
			rc.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s", errOpenTimeout, a.cfg.OpenTimeout)
	}
	if err != nil {
		return err
	}
	defer rc.Close()
	*opened = true

	lines := make(chan string)
	done := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-streamCtx.Done():
				done <- streamCtx.Err()
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		done <- err
	}()

	idle := time.NewTimer(a.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		case <-idle.C:
			return errIdle
		case line := <-lines:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(a.cfg.IdleTimeout)
			a.Observe(ctx, container, line)
		}
	}
}

func (a *Analyzer) publish(e *events.Event) {
	if a.publisher != nil {
		a.publisher.Publish(e)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
