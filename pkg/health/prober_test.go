package health

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/runtime"
	"github.com/cuemby/sentinel/pkg/runtime/runtimetest"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickyInspector struct{}

func (panickyInspector) GetContainer(ctx context.Context, name string) (*types.ContainerInfo, error) {
	panic("inspector exploded")
}

func TestProber_ContainerTarget(t *testing.T) {
	rt := runtimetest.New()
	rt.SetContainer(types.ContainerInfo{Name: "unbound", Status: types.ContainerStatusRunning})
	p := NewProber(rt, time.Second)

	target := types.Target{Name: "unbound-probe", Address: "unbound", Kind: types.TargetKindContainer}
	result := p.Check(context.Background(), target)

	assert.True(t, result.Success, result.Detail)
	assert.Equal(t, target, result.Target)
	assert.False(t, result.Timestamp.IsZero())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TargetUp.WithLabelValues("unbound-probe")))
}

func TestProber_UnknownKindIsFailure(t *testing.T) {
	p := NewProber(nil, 0)
	assert.Equal(t, DefaultTimeout, p.Timeout())

	result := p.Check(context.Background(), types.Target{Name: "weird", Kind: "smtp"})

	assert.False(t, result.Success)
	assert.Equal(t, types.FailureProtocolError, result.Failure)
}

func TestProber_RecoversPanics(t *testing.T) {
	p := NewProber(panickyInspector{}, time.Second)

	var result types.ProbeResult
	require.NotPanics(t, func() {
		result = p.Check(context.Background(), types.Target{Name: "boom", Kind: types.TargetKindContainer})
	})

	assert.False(t, result.Success)
	assert.Equal(t, types.FailureUnknown, result.Failure)
	assert.Contains(t, result.Detail, "inspector exploded")
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.TargetUp.WithLabelValues("boom")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.FailureKind
	}{
		{"nil", nil, types.FailureNone},
		{"deadline", context.DeadlineExceeded, types.FailureTimeout},
		{"wrapped deadline", fmt.Errorf("exchange: %w", context.DeadlineExceeded), types.FailureTimeout},
		{"runtime not found", fmt.Errorf("container x: %w", runtime.ErrNotFound), types.FailureNotFound},
		{"other", errors.New("boom"), types.FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
