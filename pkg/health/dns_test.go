package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startResolver runs a UDP DNS server that answers every query with rcode
func startResolver(t *testing.T, rcode int) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetRcode(r, rcode)
			_ = w.WriteMsg(m)
		}),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = server.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSChecker_AnyReplyPasses(t *testing.T) {
	tests := []struct {
		name  string
		rcode int
	}{
		{"noerror", dns.RcodeSuccess},
		{"servfail", dns.RcodeServerFailure},
		{"nxdomain", dns.RcodeNameError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startResolver(t, tt.rcode)

			result := NewDNSChecker(addr).WithTimeout(time.Second).Check(context.Background())

			assert.True(t, result.Healthy, result.Message)
			assert.Equal(t, types.FailureNone, result.Failure)
		})
	}
}

func TestDNSChecker_SilentResolverTimesOut(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	result := NewDNSChecker(pc.LocalAddr().String()).
		WithTimeout(200 * time.Millisecond).
		Check(context.Background())

	assert.False(t, result.Healthy)
	assert.Equal(t, types.FailureTimeout, result.Failure)
}

func TestResolverAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"192.168.8.251", "192.168.8.251:53"},
		{"192.168.8.251:5353", "192.168.8.251:5353"},
		{"::1", "[::1]:53"},
		{"[::1]:53", "[::1]:53"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resolverAddress(tt.in))
	}
}
