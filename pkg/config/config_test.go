package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentinel.yaml")
	data := `
failover:
  interval: 10s
  targets:
    - name: cloud
      address: 1.1.1.1
      kind: dns
      priority: 9
    - name: primary
      address: 10.0.0.2
      kind: dns
      priority: 1
reconciler:
  maxRestartsPerHour: 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("SENTINEL_TARGET_PRIMARY_ADDRESS", "10.0.0.3:5353")
	t.Setenv("SENTINEL_RECONCILE_INTERVAL", "90")
	t.Setenv("SIGNAL_BRIDGE_URL", "http://bridge:8080/v1/send")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Failover.Interval)
	assert.Equal(t, 90*time.Second, cfg.Reconciler.Interval)
	assert.Equal(t, 5, cfg.Reconciler.MaxRestartsPerHour)
	assert.Equal(t, "http://bridge:8080/v1/send", cfg.Notify.WebhookURL)

	list := cfg.PriorityList()
	require.Len(t, list, 2)
	assert.Equal(t, "primary", list[0].Name)
	assert.Equal(t, "10.0.0.3:5353", list[0].Address)
	assert.Equal(t, "cloud", list[1].Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_EmptyPriorityList(t *testing.T) {
	cfg := Default()
	cfg.Failover.Targets = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoTargets))
}

func TestValidate_AggregatesProblems(t *testing.T) {
	cfg := Default()
	cfg.Failover.Targets = []types.Target{
		{Name: "a", Address: "10.0.0.1", Kind: types.TargetKindDNS},
		{Name: "a", Address: "", Kind: "smtp"},
	}
	cfg.Reconciler.Network.Subnet = "not-a-cidr"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
	assert.Contains(t, err.Error(), "address is required")
	assert.Contains(t, err.Error(), "unknown kind")
	assert.Contains(t, err.Error(), "reconciler.network.subnet")
}

func TestValidate_ServerAccessControl(t *testing.T) {
	cfg := Default()
	cfg.Server.AllowedNetworks = []string{"127.0.0.1", "192.168.8.0/24", "lan"}
	cfg.Server.RateLimit = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid entry "lan"`)
	assert.Contains(t, err.Error(), "server.rateLimit")
	assert.NotContains(t, err.Error(), "192.168.8.0/24")
}

func TestPriorityList_StableForEqualPriorities(t *testing.T) {
	cfg := Default()
	cfg.Failover.Targets = []types.Target{
		{Name: "x", Address: "1", Kind: types.TargetKindDNS, Priority: 2},
		{Name: "y", Address: "2", Kind: types.TargetKindDNS, Priority: 1},
		{Name: "z", Address: "3", Kind: types.TargetKindDNS, Priority: 2},
	}

	list := cfg.PriorityList()
	names := []string{list[0].Name, list[1].Name, list[2].Name}
	assert.Equal(t, []string{"y", "x", "z"}, names)
}

func TestAnalyzedContainers_DefaultsToReconciler(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Reconciler.Containers, cfg.AnalyzedContainers())

	cfg.Analyzer.Containers = []string{"unbound_primary"}
	assert.Equal(t, []string{"unbound_primary"}, cfg.AnalyzedContainers())
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30", 30 * time.Second, true},
		{"1m30s", 90 * time.Second, true},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseInterval(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestValidate_RuntimeTimeouts(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.Reconciler.OperationTimeout)
	assert.Equal(t, 60*time.Second, cfg.Reconciler.RestartTimeout)
	assert.Equal(t, 30*time.Second, cfg.Analyzer.OpenTimeout)

	cfg.Reconciler.OperationTimeout = 0
	cfg.Analyzer.OpenTimeout = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operationTimeout and restartTimeout must be positive")
	assert.Contains(t, err.Error(), "analyzer.openTimeout")
}
