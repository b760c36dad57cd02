/*
Package reconciler converges the resolver network and containers on their
desired state.

Every interval (60s by default) one cycle runs two independent steps:

	┌──────────────── Reconcile(ctx) ────────────────┐
	│                                                 │
	│  1. network                                     │
	│     GetNetwork(dns_net)                         │
	│       match        → nothing                    │
	│       absent/drift → RemoveNetwork (absent ok)  │
	│                      CreateNetwork(desired)     │
	│                                                 │
	│  2. containers (for each monitored name)        │
	│     absent         → alert once, no restart     │
	│     probe passes   → nothing                    │
	│     probe fails    → Limiter.TryConsume(name)   │
	│         granted    → Restart, alert             │
	│         refused    → alert "manual intervention"│
	│                                                 │
	└─────────────────────────────────────────────────┘

Only subnet and gateway are compared, so a network that was recreated
correctly is left alone on the next cycle: one recreation per detected drift.

A failing step is logged and retried on the next cycle; the errors of a cycle
are aggregated with go-multierror and returned from Reconcile. When the same
runtime operation fails DegradedAfter times in a row (3 by default) one
"runtime degraded" event is published and the runtime health component is set
to degraded. A success of that operation resets the streak.

The restart budget is shared with the log analyzer: both consume from the same
ratelimit.Limiter keyed by container name.
*/
package reconciler
