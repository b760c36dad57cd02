package health

import (
	"context"
	"testing"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubCheck(passing map[string]bool) CheckFunc {
	return func(ctx context.Context, target types.Target) types.ProbeResult {
		r := types.ProbeResult{Target: target, Success: passing[target.Name]}
		if !r.Success {
			r.Failure = types.FailureTimeout
		}
		return r
	}
}

func TestBuildReport(t *testing.T) {
	resolvers := []types.Target{
		{Name: "primary", Address: "192.168.8.251", Kind: types.TargetKindDNS, Priority: 1},
		{Name: "cloud1", Address: "8.8.8.8", Kind: types.TargetKindDNS, Priority: 5},
	}
	containers := []string{"pihole_primary", "keepalived"}

	tests := []struct {
		name     string
		passing  map[string]bool
		expected ReportStatus
		exitCode int
	}{
		{
			name:     "everything passes",
			passing:  map[string]bool{"primary": true, "cloud1": true, "pihole_primary": true, "keepalived": true},
			expected: ReportHealthy,
			exitCode: 0,
		},
		{
			name:     "one resolver down",
			passing:  map[string]bool{"cloud1": true, "pihole_primary": true, "keepalived": true},
			expected: ReportDegraded,
			exitCode: 1,
		},
		{
			name:     "container unhealthy",
			passing:  map[string]bool{"primary": true, "cloud1": true, "pihole_primary": true},
			expected: ReportDegraded,
			exitCode: 1,
		},
		{
			name:     "no resolver reachable",
			passing:  map[string]bool{"pihole_primary": true, "keepalived": true},
			expected: ReportUnhealthy,
			exitCode: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := BuildReport(context.Background(), stubCheck(tt.passing), resolvers, containers)

			assert.Equal(t, tt.expected, report.Status)
			assert.Equal(t, tt.exitCode, report.Status.ExitCode())
			require.Len(t, report.Checks, 4)
			assert.Equal(t, "primary", report.Checks[0].Name)
			assert.True(t, report.Checks[1].Resolver)
			assert.Equal(t, types.TargetKindContainer, report.Checks[2].Kind)
			assert.False(t, report.Checks[3].Resolver)
		})
	}
}

func TestBuildReport_FailureDetail(t *testing.T) {
	report := BuildReport(context.Background(), stubCheck(nil), []types.Target{{Name: "primary", Kind: types.TargetKindDNS}}, nil)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, types.FailureTimeout, report.Checks[0].Failure)
	assert.Equal(t, ReportUnhealthy, report.Status)
}
