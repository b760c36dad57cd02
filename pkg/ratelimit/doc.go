/*
Package ratelimit bounds how often a remediation action may run for a key.

Each key (a container name) keeps the timestamps of its granted actions. A call
to TryConsume prunes stamps older than the horizon (one hour) and grants the
action only if fewer than the ceiling remain. The reconciler and every log
analyzer worker share one Limiter, so reactive and preventive restarts count
against one combined hourly budget.

A single mutex guards the whole structure; call frequency is a few per minute
at most.
*/
package ratelimit
