package health

import (
	"context"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"golang.org/x/sync/errgroup"
)

// ReportStatus is the overall verdict of a one-shot check
type ReportStatus string

const (
	ReportHealthy   ReportStatus = "healthy"
	ReportDegraded  ReportStatus = "degraded"
	ReportUnhealthy ReportStatus = "unhealthy"
)

// ExitCode maps the verdict to a process exit code: 0, 1 or 2
func (s ReportStatus) ExitCode() int {
	switch s {
	case ReportHealthy:
		return 0
	case ReportDegraded:
		return 1
	default:
		return 2
	}
}

// CheckEntry is one line of a report
type CheckEntry struct {
	Name     string            `json:"name"`
	Kind     types.TargetKind  `json:"kind"`
	Address  string            `json:"address,omitempty"`
	Pass     bool              `json:"pass"`
	Failure  types.FailureKind `json:"failure,omitempty"`
	Message  string            `json:"message,omitempty"`
	Latency  time.Duration     `json:"latency"`
	Resolver bool              `json:"resolver"`
}

// Report is the result of probing every resolver and container once
type Report struct {
	Status    ReportStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Checks    []CheckEntry `json:"checks"`
}

// CheckFunc probes one target
type CheckFunc func(ctx context.Context, target types.Target) types.ProbeResult

// BuildReport probes resolvers and containers concurrently.
//
// The report is unhealthy when no resolver passes, degraded when anything
// else fails and healthy otherwise.
func BuildReport(ctx context.Context, check CheckFunc, resolvers []types.Target, containers []string) Report {
	targets := make([]types.Target, 0, len(resolvers)+len(containers))
	targets = append(targets, resolvers...)
	for _, name := range containers {
		targets = append(targets, types.Target{Name: name, Kind: types.TargetKindContainer})
	}

	entries := make([]CheckEntry, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			r := check(gctx, target)
			entries[i] = CheckEntry{
				Name:     target.Name,
				Kind:     target.Kind,
				Address:  target.Address,
				Pass:     r.Success,
				Failure:  r.Failure,
				Message:  r.Detail,
				Latency:  r.Latency,
				Resolver: i < len(resolvers),
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:    ReportHealthy,
		Timestamp: time.Now(),
		Checks:    entries,
	}

	resolverUp := false
	for _, e := range entries {
		if e.Resolver && e.Pass {
			resolverUp = true
		}
		if !e.Pass {
			report.Status = ReportDegraded
		}
	}
	if len(resolvers) > 0 && !resolverUp {
		report.Status = ReportUnhealthy
	}
	return report
}
