package storage

import (
	"time"

	"github.com/cuemby/sentinel/pkg/types"
)

// Store persists the small amount of state that must survive a process
// restart: restart timestamps inside the rate-limit horizon and the history
// of active resolver transitions.
type Store interface {
	// Remediation records
	SaveRemediations(key string, stamps []time.Time) error
	LoadRemediations() (map[string][]time.Time, error)

	// Failover transitions
	AppendTransition(t types.Transition) error
	ListTransitions(limit int) ([]types.Transition, error)

	// Utility
	Close() error
}
