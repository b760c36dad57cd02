package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
)

// Prober runs one check against any kind of target. It never returns an
// error; every failure is reported in the ProbeResult.
type Prober struct {
	timeout time.Duration
	runtime ContainerInspector
	logger  zerolog.Logger
}

// NewProber creates a prober. rt may be nil when no container targets are
// probed. A zero timeout uses DefaultTimeout.
func NewProber(rt ContainerInspector, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		timeout: timeout,
		runtime: rt,
		logger:  log.WithComponent("probe"),
	}
}

// Timeout returns the per-check bound
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// CheckerFor builds the checker matching the target's kind
func (p *Prober) CheckerFor(target types.Target) (Checker, error) {
	switch target.Kind {
	case types.TargetKindDNS:
		return NewDNSChecker(target.Address).WithTimeout(p.timeout), nil
	case types.TargetKindTCP:
		return NewTCPChecker(target.Address).WithTimeout(p.timeout), nil
	case types.TargetKindHTTP:
		url := target.Address
		if !strings.Contains(url, "://") {
			url = "http://" + url
		}
		return NewHTTPChecker(url).WithTimeout(p.timeout), nil
	case types.TargetKindContainer:
		name := target.Address
		if name == "" {
			name = target.Name
		}
		return NewContainerChecker(p.runtime, name), nil
	default:
		return nil, fmt.Errorf("unknown target kind %q", target.Kind)
	}
}

// Check probes target within the prober's timeout
func (p *Prober) Check(ctx context.Context, target types.Target) (result types.ProbeResult) {
	start := time.Now()
	result = types.ProbeResult{Target: target, Timestamp: start}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Failure = types.FailureUnknown
			result.Detail = fmt.Sprintf("probe panicked: %v", r)
			result.Latency = time.Since(start)
			p.logger.Error().Str("target", target.Name).Interface("panic", r).Msg("Probe panicked")
		}
		p.record(result)
	}()

	checker, err := p.CheckerFor(target)
	if err != nil {
		result.Failure = types.FailureProtocolError
		result.Detail = err.Error()
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	r := checker.Check(ctx)
	result.Success = r.Healthy
	result.Latency = r.Duration
	result.Failure = r.Failure
	result.Detail = r.Message
	if !r.Healthy && result.Failure == types.FailureNone {
		result.Failure = types.FailureUnknown
	}

	return result
}

func (p *Prober) record(r types.ProbeResult) {
	status := "success"
	up := 1.0
	if !r.Success {
		status = "failure"
		up = 0
	}

	metrics.ProbesTotal.WithLabelValues(r.Target.Name, string(r.Target.Kind), status).Inc()
	metrics.ProbeDuration.WithLabelValues(r.Target.Name).Observe(r.Latency.Seconds())
	metrics.TargetUp.WithLabelValues(r.Target.Name).Set(up)

	if r.Success {
		p.logger.Debug().
			Str("target", r.Target.Name).
			Dur("latency", r.Latency).
			Msg("Probe passed")
		return
	}
	p.logger.Debug().
		Str("target", r.Target.Name).
		Str("failure", string(r.Failure)).
		Str("detail", r.Detail).
		Msg("Probe failed")
}
