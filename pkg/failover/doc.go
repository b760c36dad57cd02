/*
Package failover keeps one DNS resolver ACTIVE out of a static priority list.

The Machine holds the list sorted by priority (lower value first) and starts
with the head of the list active. Each Tick:

 1. probes the ACTIVE target
 2. if it passes, probes only the targets with a strictly lower priority
    value, in order, and fails back to the first that passes
 3. if it fails, scans the whole list in order (reusing the active target's
    failed result) and fails over to the first that passes
 4. if nothing passes, reports NoTargetsAvailable and keeps the previous
    active target; the next tick retries without backoff

The outcome of a tick is therefore always the first passing target in priority
order, or NoTargetsAvailable.

	primary ──fail──► secondary ──fail──► backup1 ... cloud2
	   ▲                  │
	   └────failback──────┘   (only toward a lower priority value)

Every change of the active target is recorded as a types.Transition (in
memory, bounded, and in the optional TransitionStore), counted in
sentinel_failover_events_total and published as an event. Selecting the
target that is already active records and publishes nothing.

Entering NoTargetsAvailable publishes one critical event; leaving it publishes
one info event.

# Concurrency

Tick is driven by a single loop (Run). Snapshot, Active and LastResults take a
short read lock and may be called from HTTP or gRPC handlers. The lock is never
held while a probe runs.
*/
package failover
