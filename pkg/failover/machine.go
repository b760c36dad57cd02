package failover

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultHistoryLimit bounds the in-memory transition history
const DefaultHistoryLimit = 500

// ErrNoTargets is returned when the priority list is empty
var ErrNoTargets = errors.New("failover: priority list is empty")

// Prober checks one target. Implementations never return an error; failures
// are reported in the result.
type Prober interface {
	Check(ctx context.Context, target types.Target) types.ProbeResult
}

// TransitionStore persists transitions beyond the in-memory history
type TransitionStore interface {
	AppendTransition(t types.Transition) error
}

// Machine selects the active target from a static priority list. Tick is
// called by a single loop; Snapshot may be called from anywhere.
type Machine struct {
	targets   []types.Target
	prober    Prober
	publisher events.Publisher
	store     TransitionStore
	now       func() time.Time
	limit     int
	logger    zerolog.Logger

	// Protected by mu. Never held across a probe.
	mu             sync.RWMutex
	active         int
	noTargets      bool
	lastTransition time.Time
	lastTick       time.Time
	history        []types.Transition
	lastResults    map[string]types.ProbeResult

	listenersMu sync.Mutex
	listeners   []func(types.FailoverState)
}

// Option configures a Machine
type Option func(*Machine)

// WithPublisher sends transition alerts to p
func WithPublisher(p events.Publisher) Option {
	return func(m *Machine) { m.publisher = p }
}

// WithStore persists every transition
func WithStore(s TransitionStore) Option {
	return func(m *Machine) { m.store = s }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithHistoryLimit caps the in-memory history
func WithHistoryLimit(n int) Option {
	return func(m *Machine) { m.limit = n }
}

// NewMachine creates a machine whose initial ACTIVE target is the one with
// the lowest priority value. Targets with equal priority keep their order.
func NewMachine(targets []types.Target, prober Prober, opts ...Option) (*Machine, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if prober == nil {
		return nil, fmt.Errorf("failover: prober is required")
	}

	sorted := make([]types.Target, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	m := &Machine{
		targets:     sorted,
		prober:      prober,
		now:         time.Now,
		limit:       DefaultHistoryLimit,
		logger:      log.WithComponent("failover"),
		lastResults: make(map[string]types.ProbeResult, len(sorted)),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.setActiveGauge(-1, 0)
	metrics.NoTargetsAvailable.Set(0)

	return m, nil
}

// Targets returns the priority list in evaluation order
func (m *Machine) Targets() []types.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Target, len(m.targets))
	copy(out, m.targets)
	return out
}

// Active returns the current ACTIVE target
func (m *Machine) Active() types.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.targets[m.active]
}

// Snapshot returns a point-in-time copy of the machine state
func (m *Machine) Snapshot() types.FailoverState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() types.FailoverState {
	history := make([]types.Transition, len(m.history))
	copy(history, m.history)
	return types.FailoverState{
		Active:             m.targets[m.active],
		NoTargetsAvailable: m.noTargets,
		LastTransition:     m.lastTransition,
		LastTick:           m.lastTick,
		History:            history,
	}
}

// LastResults returns the most recent probe result per target name
func (m *Machine) LastResults() map[string]types.ProbeResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]types.ProbeResult, len(m.lastResults))
	for k, v := range m.lastResults {
		out[k] = v
	}
	return out
}

// OnTick registers fn to receive the state after every tick
func (m *Machine) OnTick(fn func(types.FailoverState)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Tick runs one evaluation round and returns the resulting state.
//
// The active target is probed first. When it passes, only targets with a
// strictly lower priority value are probed, and the first that passes takes
// over. When it fails, the whole list is scanned in order and the first
// passing target becomes active. If nothing passes the machine reports
// NoTargetsAvailable and keeps the previous active target.
func (m *Machine) Tick(ctx context.Context) types.FailoverState {
	m.mu.RLock()
	current := m.active
	m.mu.RUnlock()

	results := make(map[string]types.ProbeResult)
	probe := func(i int) bool {
		r := m.prober.Check(ctx, m.targets[i])
		results[m.targets[i].Name] = r
		return r.Success
	}

	next := -1
	var reason types.TransitionReason

	if probe(current) {
		next = current
		for i := 0; i < current && m.targets[i].Priority < m.targets[current].Priority; i++ {
			if ctx.Err() != nil {
				break
			}
			if probe(i) {
				next = i
				reason = types.ReasonFailback
				break
			}
		}
	} else {
		m.logger.Warn().
			Str("target", m.targets[current].Name).
			Str("failure", string(results[m.targets[current].Name].Failure)).
			Msg("Active target is down")

		for i := range m.targets {
			if i == current {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			if probe(i) {
				next = i
				reason = types.ReasonFailover
				break
			}
		}
	}

	// Probes cut short by shutdown say nothing about the targets
	if ctx.Err() != nil {
		return m.Snapshot()
	}

	state, emitted := m.apply(current, next, reason, results)

	for _, e := range emitted {
		m.publish(e)
	}
	m.notifyListeners(state)

	return state
}

// apply commits the outcome of a tick under the lock and returns the
// events to publish once the lock is released.
func (m *Machine) apply(current, next int, reason types.TransitionReason, results map[string]types.ProbeResult) (types.FailoverState, []*events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.lastTick = now
	for name, r := range results {
		m.lastResults[name] = r
	}

	var emitted []*events.Event

	if next < 0 {
		if !m.noTargets {
			m.noTargets = true
			metrics.NoTargetsAvailable.Set(1)
			m.logger.Error().Msg("No targets available")
			emitted = append(emitted, events.New(
				events.EventNoTargets,
				events.SeverityCritical,
				"failover",
				fmt.Sprintf("No DNS targets available; %s remains nominally active", m.targets[current].Name),
			).With("active", m.targets[current].Name))
		}
		return m.snapshotLocked(), emitted
	}

	if m.noTargets {
		m.noTargets = false
		metrics.NoTargetsAvailable.Set(0)
		emitted = append(emitted, events.New(
			events.EventTargetsRestored,
			events.SeverityInfo,
			"failover",
			fmt.Sprintf("DNS target %s is reachable again", m.targets[next].Name),
		).With("target", m.targets[next].Name))
	}

	if next == current {
		return m.snapshotLocked(), emitted
	}

	from, to := m.targets[current], m.targets[next]
	t := types.Transition{
		ID:     uuid.NewString(),
		From:   from.Name,
		To:     to.Name,
		Reason: reason,
		Time:   now,
	}

	m.active = next
	m.lastTransition = now
	m.history = append(m.history, t)
	if m.limit > 0 && len(m.history) > m.limit {
		m.history = append([]types.Transition(nil), m.history[len(m.history)-m.limit:]...)
	}

	m.setActiveGauge(current, next)
	metrics.FailoverEventsTotal.WithLabelValues(from.Name, to.Name, string(reason)).Inc()

	if m.store != nil {
		if err := m.store.AppendTransition(t); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to persist transition")
		}
	}

	m.logger.Warn().
		Str("from", from.Name).
		Str("to", to.Name).
		Str("reason", string(reason)).
		Msg("Active target changed")

	typ, severity := events.EventFailover, events.SeverityWarning
	if reason == types.ReasonFailback {
		typ, severity = events.EventFailback, events.SeverityInfo
	}
	emitted = append(emitted, events.New(
		typ,
		severity,
		"failover",
		fmt.Sprintf("DNS %s: %s (%s) -> %s (%s)", reason, from.Name, from.Address, to.Name, to.Address),
	).With("from", from.Name).With("to", to.Name).With("transition_id", t.ID))

	return m.snapshotLocked(), emitted
}

// Run ticks immediately and then every interval until ctx is cancelled
func (m *Machine) Run(ctx context.Context, interval time.Duration) error {
	m.logger.Info().
		Int("targets", len(m.targets)).
		Str("active", m.Active().Name).
		Dur("interval", interval).
		Msg("Failover loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Failover loop stopped")
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Revalidate replaces the priority list. If the active target is not in the
// new list the highest-priority target becomes active without a transition
// record. It must not run concurrently with Tick. Configuration is loaded
// once, so nothing calls this at runtime.
func (m *Machine) Revalidate(targets []types.Target) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}

	sorted := make([]types.Target, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	activeName := m.targets[m.active].Name
	m.targets = sorted
	m.active = 0
	for i, t := range sorted {
		if t.Name == activeName {
			m.active = i
			break
		}
	}
	m.setActiveGauge(-1, m.active)
	return nil
}

func (m *Machine) setActiveGauge(from, to int) {
	if from < 0 {
		metrics.ActiveTarget.Reset()
	} else {
		metrics.ActiveTarget.WithLabelValues(m.targets[from].Name).Set(0)
	}
	metrics.ActiveTarget.WithLabelValues(m.targets[to].Name).Set(1)
}

func (m *Machine) publish(e *events.Event) {
	if m.publisher != nil {
		m.publisher.Publish(e)
	}
}

func (m *Machine) notifyListeners(state types.FailoverState) {
	m.listenersMu.Lock()
	listeners := make([]func(types.FailoverState), len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
