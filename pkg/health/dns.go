package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/miekg/dns"
)

const (
	// DefaultDNSPort is used when a dns target address has no port
	DefaultDNSPort = "53"

	// DefaultQueryName is the question sent by DNSChecker
	DefaultQueryName = "google.com."
)

// DNSChecker verifies that a resolver process answers. It sends a single
// A question and passes on any well-formed reply, whatever the rcode or
// answer section.
type DNSChecker struct {
	// Address is host or host:port of the resolver
	Address string

	// Name is the question name (fully qualified)
	Name string

	// Net is the transport, "udp" (default) or "tcp"
	Net string

	Timeout time.Duration
}

// NewDNSChecker creates a new DNS reachability checker
func NewDNSChecker(address string) *DNSChecker {
	return &DNSChecker{
		Address: address,
		Name:    DefaultQueryName,
		Net:     "udp",
		Timeout: DefaultTimeout,
	}
}

// Check performs the DNS health check
func (d *DNSChecker) Check(ctx context.Context) Result {
	start := time.Now()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(d.Name), dns.TypeA)
	msg.RecursionDesired = true

	client := &dns.Client{
		Net:     d.Net,
		Timeout: d.Timeout,
	}

	resp, _, err := client.ExchangeContext(ctx, msg, resolverAddress(d.Address))
	if err != nil {
		kind := Classify(err)
		if kind == types.FailureUnknown && isMalformed(err) {
			kind = types.FailureProtocolError
		}
		return failed(start, kind, fmt.Sprintf("query failed: %v", err))
	}
	if resp == nil || !resp.Response {
		return failed(start, types.FailureProtocolError, "reply is not a DNS response")
	}

	return passed(start, fmt.Sprintf("resolver answered %s", dns.RcodeToString[resp.Rcode]))
}

// Type returns the health check type
func (d *DNSChecker) Type() types.TargetKind {
	return types.TargetKindDNS
}

// WithNet sets the transport
func (d *DNSChecker) WithNet(network string) *DNSChecker {
	d.Net = network
	return d
}

// WithTimeout sets the exchange timeout
func (d *DNSChecker) WithTimeout(timeout time.Duration) *DNSChecker {
	d.Timeout = timeout
	return d
}

func resolverAddress(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, DefaultDNSPort)
}

// isMalformed reports errors raised while unpacking or matching the reply
func isMalformed(err error) bool {
	_, ok := err.(*dns.Error)
	return ok
}
