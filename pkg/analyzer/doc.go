/*
Package analyzer predicts container failures from their logs.

One Watch loop per container follows the runtime log stream. Each line is
classified against an ordered list of Signatures; the first match wins and
lines that match nothing are dropped. Built-in categories, in order:

	out_of_memory  timeout  connection_error  config_error
	permission_denied  disk_full  network_unreachable  fatal

A Signature's Matcher is an interface, so categories can be added or
reordered with WithSignatures without touching the loop.

# Risk

Every classified line is appended to the container's Tracker (a ring buffer,
1000 entries by default) and the risk is recomputed over the trailing window:

	recent   = observations in the last 5 minutes
	rate     = len(recent) / clamp(now - earliest, 1s, 300s) * 60
	dominant = most frequent category in recent, ties to the latest seen

A prediction fires when rate >= critical (10/min), or when rate >= warning
(5/min) and at least warning observations fall in the last 60 seconds. It is
suppressed while the same (container, dominant) pair fired less than the
cooldown (5 minutes) ago.

Note that a single observation yields 60/min because of the one-second floor,
so the first classified line after a quiet period fires.

# Firing

A prediction publishes a warning event and asks the shared ratelimit.Limiter
for a restart. Reactive restarts from the reconciler draw on the same budget.
Granted: the container is restarted and the outcome is published. Refused: a
critical "manual intervention" event is published.

# Streams

When a stream ends, cannot be opened, or stays silent for IdleTimeout, the
loop waits ReconnectBackoff (15s) and opens a new one. It only returns when its
context is cancelled.
*/
package analyzer
