/*
Package health probes the reachability of resolvers, HTTP and TCP endpoints
and containers.

Every probe is a Checker. The Prober picks the checker for a target's kind,
bounds it with a timeout and turns the outcome into a types.ProbeResult.

	┌──────────────────────────────────────────────────────────────┐
	│                     Prober.Check(ctx, target)                │
	│  • context.WithTimeout(ctx, timeout)                         │
	│  • recovers panics, records metrics                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │  CheckerFor(target.Kind)
	    ┌────┴──────┬──────────┬──────────────┐
	    ▼           ▼          ▼              ▼
	┌────────┐  ┌──────┐  ┌────────┐  ┌───────────┐
	│  DNS   │  │ TCP  │  │  HTTP  │  │ Container │
	│Checker │  │Checker│ │Checker │  │  Checker  │
	└────────┘  └──────┘  └────────┘  └───────────┘

# Checkers

DNSChecker sends a single A question with miekg/dns to host[:53] over UDP.
Any well-formed reply passes, including SERVFAIL or NXDOMAIN: the check
verifies that the resolver process answers, not that it resolves correctly.

TCPChecker passes when a connection is established.

HTTPChecker issues a GET and passes on a status in 200-399. Redirects are not
followed.

ContainerChecker asks the runtime for the container state. A running
container passes when it has no health check or its health check reports
healthy; "starting" and "unhealthy" fail.

# Failure classification

A failed probe never returns an error. Its Failure field holds one of:

	timeout              deadline exceeded or network timeout
	connection-refused   ECONNREFUSED from the dial
	not-found            unknown container, NXDOMAIN host, HTTP 404
	protocol-error       malformed DNS reply, unexpected HTTP status,
	                     container health check failing
	unknown              anything else

# Metrics

Every probe increments sentinel_probes_total{target,kind,status}, observes
sentinel_probe_duration_seconds{target} and sets sentinel_target_up{target}.

# Usage

	prober := health.NewProber(rt, 5*time.Second)
	result := prober.Check(ctx, types.Target{
		Name:    "primary",
		Address: "192.168.8.251",
		Kind:    types.TargetKindDNS,
	})
	if !result.Success {
		log.Warn(fmt.Sprintf("%s down: %s", result.Target.Name, result.Failure))
	}
*/
package health
