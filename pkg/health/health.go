package health

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/cuemby/sentinel/pkg/runtime"
	"github.com/cuemby/sentinel/pkg/types"
)

// DefaultTimeout bounds a probe when the caller does not supply one
const DefaultTimeout = 5 * time.Second

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	Failure   types.FailureKind
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the kind of target this checker probes
	Type() types.TargetKind
}

func failed(start time.Time, kind types.FailureKind, message string) Result {
	return Result{
		Healthy:   false,
		Message:   message,
		Failure:   kind,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func passed(start time.Time, message string) Result {
	return Result{
		Healthy:   true,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Classify maps a transport or runtime error to a FailureKind
func Classify(err error) types.FailureKind {
	if err == nil {
		return types.FailureNone
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return types.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.FailureTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return types.FailureConnectionRefused
	}

	if errors.Is(err, runtime.ErrNotFound) {
		return types.FailureNotFound
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return types.FailureNotFound
	}

	return types.FailureUnknown
}
