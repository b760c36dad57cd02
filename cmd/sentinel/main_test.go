package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/health"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() health.Report {
	return health.Report{
		Status:    health.ReportDegraded,
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Checks: []health.CheckEntry{
			{Name: "primary", Kind: types.TargetKindDNS, Pass: false, Message: "i/o timeout", Resolver: true},
			{Name: "cloud1", Kind: types.TargetKindDNS, Pass: true, Message: "DNS responded", Resolver: true},
		},
	}
}

func TestPrintReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, sampleReport(), "text"))

	out := buf.String()
	assert.Contains(t, out, "Overall Status: DEGRADED")
	assert.Contains(t, out, "✗ primary")
	assert.Contains(t, out, "✓ cloud1")
}

func TestPrintReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, sampleReport(), "json"))

	var decoded health.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, health.ReportDegraded, decoded.Status)
	assert.Len(t, decoded.Checks, 2)
}

func TestPrintTransitions(t *testing.T) {
	var buf bytes.Buffer
	printTransitions(&buf, nil)
	assert.Contains(t, buf.String(), "No transitions recorded")

	buf.Reset()
	printTransitions(&buf, []types.Transition{
		{From: "primary", To: "secondary", Reason: types.ReasonFailover, Time: time.Now()},
	})
	assert.Contains(t, buf.String(), "primary -> secondary")
}

func TestReportFailoverHealth(t *testing.T) {
	report := reportFailoverHealth("primary")

	tests := []struct {
		name     string
		state    types.FailoverState
		expected string
	}{
		{"preferred active", types.FailoverState{Active: types.Target{Name: "primary"}}, "healthy"},
		{"serving from backup", types.FailoverState{Active: types.Target{Name: "cloud1"}}, "degraded: serving from cloud1"},
		{"nothing answers", types.FailoverState{Active: types.Target{Name: "cloud1"}, NoTargetsAvailable: true}, "unhealthy: no DNS targets available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report(tt.state)
			assert.Equal(t, tt.expected, metrics.GetHealth().Components["failover"])
		})
	}
}
