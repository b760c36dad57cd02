package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuemby/sentinel/pkg/config"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeDaemon serves just enough of the Engine API for the adapter
func newFakeDaemon(t *testing.T) *DockerRuntime {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Api-Version", "1.45")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/_ping"):
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/containers/pihole_primary/json"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"Id":   "abc123",
				"Name": "/pihole_primary",
				"State": map[string]any{
					"Status": "running",
					"Health": map[string]any{"Status": "unhealthy"},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/networks/dns_net"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"Name":    "dns_net",
				"Driver":  "macvlan",
				"Options": map[string]string{"parent": "eth0"},
				"IPAM": map[string]any{
					"Config": []map[string]string{{"Subnet": "192.168.8.0/24", "Gateway": "192.168.8.1"}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "No such object"})
		}
	}))
	t.Cleanup(server.Close)

	rt, err := NewDockerRuntime("tcp://" + strings.TrimPrefix(server.URL, "http://"))
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestDockerRuntime_GetContainer(t *testing.T) {
	rt := newFakeDaemon(t)

	info, err := rt.GetContainer(context.Background(), "pihole_primary")
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.ID)
	assert.Equal(t, types.ContainerStatusRunning, info.Status)
	assert.Equal(t, types.HealthUnhealthy, info.Health)
}

func TestDockerRuntime_GetContainerNotFound(t *testing.T) {
	rt := newFakeDaemon(t)

	_, err := rt.GetContainer(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDockerRuntime_GetNetwork(t *testing.T) {
	rt := newFakeDaemon(t)

	desc, err := rt.GetNetwork(context.Background(), "dns_net")
	require.NoError(t, err)
	assert.Equal(t, "192.168.8.0/24", desc.Subnet)
	assert.Equal(t, "192.168.8.1", desc.Gateway)
	assert.Equal(t, "eth0", desc.ParentInterface)

	_, err = rt.GetNetwork(context.Background(), "other_net")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDockerStatus(t *testing.T) {
	tests := []struct {
		in   string
		want types.ContainerStatus
	}{
		{"running", types.ContainerStatusRunning},
		{"exited", types.ContainerStatusExited},
		{"dead", types.ContainerStatusDead},
		{"removing", types.ContainerStatusUnknown},
		{"", types.ContainerStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, dockerStatus(tt.in))
		})
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(config.RuntimeConfig{Driver: "podman"})
	assert.Error(t, err)
}
