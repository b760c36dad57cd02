package types

import (
	"time"
)

// TargetKind identifies how a target is probed
type TargetKind string

const (
	TargetKindDNS       TargetKind = "dns"
	TargetKindHTTP      TargetKind = "http"
	TargetKindTCP       TargetKind = "tcp"
	TargetKindContainer TargetKind = "container"
)

// Valid reports whether k is one of the known target kinds
func (k TargetKind) Valid() bool {
	switch k {
	case TargetKindDNS, TargetKindHTTP, TargetKindTCP, TargetKindContainer:
		return true
	}
	return false
}

// Target is an endpoint under health supervision.
// Lower Priority values take precedence.
type Target struct {
	Name     string     `json:"name" yaml:"name"`
	Address  string     `json:"address" yaml:"address"`
	Kind     TargetKind `json:"kind" yaml:"kind"`
	Priority int        `json:"priority" yaml:"priority"`
}

// FailureKind classifies why a probe failed
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureTimeout           FailureKind = "timeout"
	FailureConnectionRefused FailureKind = "connection-refused"
	FailureNotFound          FailureKind = "not-found"
	FailureProtocolError     FailureKind = "protocol-error"
	FailureUnknown           FailureKind = "unknown"

	// FailureRuntime means the container runtime could not be asked about
	// the target, so nothing is known about the target itself
	FailureRuntime FailureKind = "runtime-unavailable"
)

// ProbeResult is the outcome of a single check against one target
type ProbeResult struct {
	Target    Target        `json:"target"`
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	Latency   time.Duration `json:"latency"`
	Failure   FailureKind   `json:"failure,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

// TransitionReason explains why the active target changed
type TransitionReason string

const (
	ReasonFailover TransitionReason = "failover"
	ReasonFailback TransitionReason = "failback"
)

// Transition records one change of the active target
type Transition struct {
	ID     string           `json:"id"`
	From   string           `json:"from"`
	To     string           `json:"to"`
	Reason TransitionReason `json:"reason"`
	Time   time.Time        `json:"time"`
}

// FailoverState is a point-in-time view of the failover machine
type FailoverState struct {
	Active             Target       `json:"active"`
	NoTargetsAvailable bool         `json:"no_targets_available"`
	LastTransition     time.Time    `json:"last_transition"`
	LastTick           time.Time    `json:"last_tick"`
	History            []Transition `json:"history"`
}

// ContainerStatus mirrors the runtime's coarse container state
type ContainerStatus string

const (
	ContainerStatusRunning    ContainerStatus = "running"
	ContainerStatusCreated    ContainerStatus = "created"
	ContainerStatusRestarting ContainerStatus = "restarting"
	ContainerStatusPaused     ContainerStatus = "paused"
	ContainerStatusExited     ContainerStatus = "exited"
	ContainerStatusDead       ContainerStatus = "dead"
	ContainerStatusUnknown    ContainerStatus = "unknown"
)

// HealthStatus is the runtime-reported health check state, if any
type HealthStatus string

const (
	HealthNone      HealthStatus = ""
	HealthStarting  HealthStatus = "starting"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ContainerInfo is the observed state of a container
type ContainerInfo struct {
	Name   string          `json:"name"`
	ID     string          `json:"id,omitempty"`
	Status ContainerStatus `json:"status"`
	Health HealthStatus    `json:"health,omitempty"`
}

// NetworkDescriptor describes the shared virtual network
type NetworkDescriptor struct {
	Name            string `json:"name" yaml:"name"`
	Driver          string `json:"driver" yaml:"driver"`
	Subnet          string `json:"subnet" yaml:"subnet"`
	Gateway         string `json:"gateway" yaml:"gateway"`
	ParentInterface string `json:"parent_interface" yaml:"parentInterface"`
}

// Matches reports whether the observed descriptor satisfies the desired one.
// Only addressing is compared; drivers and parents cannot be read back reliably.
func (d NetworkDescriptor) Matches(observed NetworkDescriptor) bool {
	return d.Subnet == observed.Subnet && d.Gateway == observed.Gateway
}

// ErrorCategory is one of the fixed log signature classes
type ErrorCategory string

const (
	CategoryOutOfMemory        ErrorCategory = "out_of_memory"
	CategoryTimeout            ErrorCategory = "timeout"
	CategoryConnectionError    ErrorCategory = "connection_error"
	CategoryConfigError        ErrorCategory = "config_error"
	CategoryPermissionDenied   ErrorCategory = "permission_denied"
	CategoryDiskFull           ErrorCategory = "disk_full"
	CategoryNetworkUnreachable ErrorCategory = "network_unreachable"
	CategoryFatal              ErrorCategory = "fatal"
)

// ErrorObservation is one classified log line
type ErrorObservation struct {
	Container string        `json:"container"`
	Category  ErrorCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Snippet   string        `json:"snippet"`
}

// PredictionCacheEntry remembers when a prediction last fired
type PredictionCacheEntry struct {
	Container string        `json:"container"`
	Category  ErrorCategory `json:"category"`
	LastFired time.Time     `json:"last_fired"`
}
