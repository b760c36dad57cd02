package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/runtime"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Prober checks a container target
type Prober interface {
	Check(ctx context.Context, target types.Target) types.ProbeResult
}

// Limiter grants or refuses a restart for a container
type Limiter interface {
	TryConsume(key string) bool
}

const (
	defaultOperationTimeout = 30 * time.Second
	defaultRestartTimeout   = 60 * time.Second
)

// Config is the reconciler's slice of the process configuration
type Config struct {
	Interval      time.Duration
	ManageNetwork bool
	Network       types.NetworkDescriptor
	Containers    []string
	DegradedAfter int

	// OperationTimeout bounds each runtime call other than a restart
	OperationTimeout time.Duration
	RestartTimeout   time.Duration
}

// Reconciler ensures the resolver network and containers match desired state
type Reconciler struct {
	runtime   runtime.Runtime
	prober    Prober
	limiter   Limiter
	publisher events.Publisher
	cfg       Config
	failures  *failureTracker
	logger    zerolog.Logger

	mu                 sync.Mutex
	missing            map[string]bool
	refused            map[string]bool
	networkUnsupported bool
	lastCycle          time.Time
}

// NewReconciler creates a new reconciler
func NewReconciler(rt runtime.Runtime, prober Prober, limiter Limiter, publisher events.Publisher, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.DegradedAfter <= 0 {
		cfg.DegradedAfter = 3
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}
	if cfg.RestartTimeout <= 0 {
		cfg.RestartTimeout = defaultRestartTimeout
	}
	return &Reconciler{
		runtime:   rt,
		prober:    prober,
		limiter:   limiter,
		publisher: publisher,
		cfg:       cfg,
		failures:  newFailureTracker(cfg.DegradedAfter),
		logger:    log.WithComponent("reconciler"),
		missing:   make(map[string]bool),
		refused:   make(map[string]bool),
	}
}

// Run reconciles immediately and then every interval until ctx is cancelled
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("interval", r.cfg.Interval).
		Strs("containers", r.cfg.Containers).
		Bool("manage_network", r.cfg.ManageNetwork).
		Msg("Reconciler started")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := r.Reconcile(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn().Err(err).Msg("Reconciliation cycle finished with errors")
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Reconciler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// LastCycle returns when the last cycle completed
func (r *Reconciler) LastCycle() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCycle
}

// Reconcile performs one reconciliation cycle. A failing step is logged and
// does not stop the remaining steps; all step errors are returned together.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconcileDuration)
		metrics.ReconcileCyclesTotal.Inc()
		metrics.LastReconcileTimestamp.SetToCurrentTime()
	}()

	var result *multierror.Error

	if r.cfg.ManageNetwork {
		if err := r.reconcileNetwork(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := r.reconcileContainers(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	r.mu.Lock()
	r.lastCycle = time.Now()
	r.mu.Unlock()

	if err := result.ErrorOrNil(); err != nil {
		metrics.SetComponent("reconciler", metrics.StateDegraded, err.Error())
		return err
	}
	metrics.SetComponent("reconciler", metrics.StateHealthy, "")
	return nil
}

// reconcileNetwork recreates the shared network when it is absent or its
// addressing differs from the desired descriptor.
func (r *Reconciler) reconcileNetwork(ctx context.Context) error {
	r.mu.Lock()
	unsupported := r.networkUnsupported
	r.mu.Unlock()
	if unsupported {
		return nil
	}

	desired := r.cfg.Network
	logger := r.logger.With().Str("network", desired.Name).Logger()

	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	observed, err := r.runtime.GetNetwork(opCtx, desired.Name)
	cancel()
	switch {
	case errors.Is(err, runtime.ErrUnsupported):
		logger.Warn().Msg("Runtime cannot manage networks, skipping network checks")
		r.mu.Lock()
		r.networkUnsupported = true
		r.mu.Unlock()
		return nil
	case err != nil && !errors.Is(err, runtime.ErrNotFound):
		r.runtimeFailure("get-network", err)
		return fmt.Errorf("inspect network %s: %w", desired.Name, err)
	}
	r.runtimeSuccess("get-network")

	reason := "absent"
	if observed != nil {
		if desired.Matches(*observed) {
			return nil
		}
		reason = fmt.Sprintf("mismatch (have %s via %s)", observed.Subnet, observed.Gateway)
	}

	logger.Warn().Str("reason", reason).Msg("Recreating network")

	opCtx, cancel = context.WithTimeout(ctx, r.cfg.OperationTimeout)
	err = r.runtime.RemoveNetwork(opCtx, desired.Name)
	cancel()
	if err != nil && !errors.Is(err, runtime.ErrNotFound) {
		r.runtimeFailure("remove-network", err)
		r.publish(events.New(events.EventNetworkFailed, events.SeverityWarning, "reconciler",
			fmt.Sprintf("Failed to remove stale network %s: %v", desired.Name, err)).
			With("network", desired.Name))
		return fmt.Errorf("remove network %s: %w", desired.Name, err)
	}
	r.runtimeSuccess("remove-network")

	opCtx, cancel = context.WithTimeout(ctx, r.cfg.OperationTimeout)
	err = r.runtime.CreateNetwork(opCtx, desired)
	cancel()
	if err != nil {
		r.runtimeFailure("create-network", err)
		r.publish(events.New(events.EventNetworkFailed, events.SeverityWarning, "reconciler",
			fmt.Sprintf("Failed to recreate network %s: %v", desired.Name, err)).
			With("network", desired.Name))
		return fmt.Errorf("create network %s: %w", desired.Name, err)
	}
	r.runtimeSuccess("create-network")

	metrics.NetworkRecreationsTotal.Inc()
	logger.Info().Str("subnet", desired.Subnet).Str("gateway", desired.Gateway).Msg("Network recreated")
	r.publish(events.New(events.EventNetworkRecreated, events.SeverityWarning, "reconciler",
		fmt.Sprintf("Network %s was %s and has been recreated (%s via %s)", desired.Name, reason, desired.Subnet, desired.Gateway)).
		With("network", desired.Name))

	return nil
}

// reconcileContainers probes each monitored container and restarts failing
// ones within the restart budget.
func (r *Reconciler) reconcileContainers(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	names, err := r.runtime.ListContainers(opCtx)
	cancel()
	if err != nil {
		r.runtimeFailure("list", err)
		return fmt.Errorf("list containers: %w", err)
	}
	r.runtimeSuccess("list")

	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	var result *multierror.Error
	for _, name := range r.cfg.Containers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.reconcileContainer(ctx, name, present[name]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *Reconciler) reconcileContainer(ctx context.Context, name string, present bool) error {
	logger := log.WithContainer("reconciler", name)

	if !present {
		logger.Warn().Msg("Monitored container not found")
		if r.flag(r.missing, name, true) {
			r.publish(events.New(events.EventContainerMissing, events.SeverityWarning, "reconciler",
				fmt.Sprintf("Container %s is missing; it cannot be restarted until it is recreated", name)).
				With("container", name))
		}
		return nil
	}
	r.flag(r.missing, name, false)

	result := r.prober.Check(ctx, types.Target{Name: name, Address: name, Kind: types.TargetKindContainer})
	if result.Failure == types.FailureRuntime {
		// Container state is unknown; no restart and no budget spent
		err := errors.New(result.Detail)
		r.runtimeFailure("get", err)
		return fmt.Errorf("inspect %s: %w", name, err)
	}
	r.runtimeSuccess("get")

	if result.Success {
		r.flag(r.refused, name, false)
		return nil
	}

	logger.Warn().
		Str("failure", string(result.Failure)).
		Str("detail", result.Detail).
		Msg("Container is unhealthy")

	if !r.limiter.TryConsume(name) {
		metrics.RestartsRefusedTotal.WithLabelValues(name).Inc()
		logger.Error().Msg("Restart budget exhausted, manual intervention required")
		if r.flag(r.refused, name, true) {
			r.publish(events.New(events.EventRestartRefused, events.SeverityCritical, "reconciler",
				fmt.Sprintf("Container %s reached its hourly restart limit; manual intervention required", name)).
				With("container", name))
		}
		return nil
	}
	r.flag(r.refused, name, false)

	restartCtx, cancel := context.WithTimeout(ctx, r.cfg.RestartTimeout)
	err := r.runtime.Restart(restartCtx, name)
	cancel()
	if err != nil {
		r.runtimeFailure("restart", err)
		logger.Error().Err(err).Msg("Restart failed")
		r.publish(events.New(events.EventRestartFailed, events.SeverityWarning, "reconciler",
			fmt.Sprintf("Failed to restart container %s: %v", name, err)).
			With("container", name))
		return fmt.Errorf("restart %s: %w", name, err)
	}
	r.runtimeSuccess("restart")

	metrics.ContainerRestartsTotal.WithLabelValues(name, "reactive").Inc()
	logger.Info().Msg("Container restarted")
	r.publish(events.New(events.EventContainerRestart, events.SeverityWarning, "reconciler",
		fmt.Sprintf("Container %s was unhealthy (%s) and has been restarted", name, result.Failure)).
		With("container", name))

	return nil
}

// flag sets set[name] to v and reports whether it changed from false to true
func (r *Reconciler) flag(set map[string]bool, name string, v bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	was := set[name]
	set[name] = v
	return v && !was
}

func (r *Reconciler) runtimeFailure(op string, err error) {
	metrics.RuntimeErrorsTotal.WithLabelValues(op).Inc()
	count, escalate := r.failures.failure(op)
	r.logger.Warn().Err(err).Str("operation", op).Int("consecutive", count).Msg("Runtime operation failed")

	if escalate {
		msg := fmt.Sprintf("Container runtime degraded: %s failed %d times in a row: %v", op, count, err)
		metrics.SetComponent("runtime", metrics.StateDegraded, msg)
		r.publish(events.New(events.EventRuntimeDegraded, events.SeverityDegraded, "reconciler", msg).
			With("operation", op))
	}
}

func (r *Reconciler) runtimeSuccess(op string) {
	if r.failures.success(op) && !r.failures.anyEscalated() {
		metrics.SetComponent("runtime", metrics.StateHealthy, "")
	}
}

func (r *Reconciler) publish(e *events.Event) {
	if r.publisher != nil {
		r.publisher.Publish(e)
	}
}
