/*
Package metrics exposes sentinel's Prometheus metrics and component health.

All collectors are package-level variables registered in init and updated as a
side effect of the control loops; there is no metrics state the loops depend
on. The HTTP handler is served by pkg/api on /metrics.

# Metric Families

Probes (from every probe, whichever loop ran it):

	sentinel_probes_total{target,kind,status}
	sentinel_probe_duration_seconds{target}
	sentinel_target_up{target}

Failover:

	sentinel_failover_active_target{target}          1 for the active resolver
	sentinel_failover_events_total{from,to,reason}   failover / failback
	sentinel_failover_no_targets_available

Reconciler:

	sentinel_reconcile_cycles_total
	sentinel_reconcile_duration_seconds
	sentinel_reconcile_last_timestamp_seconds
	sentinel_container_restarts_total{container,trigger}   reactive / preventive
	sentinel_container_restarts_refused_total{container}
	sentinel_network_recreations_total
	sentinel_runtime_errors_total{operation}
	sentinel_restart_budget_remaining{container}

Log analysis:

	sentinel_log_errors_total{container,category}
	sentinel_log_error_rate_per_minute{container}
	sentinel_predictions_total{container,category}
	sentinel_log_stream_reconnects_total{container}

Notifications and process:

	sentinel_notifications_total{status}   sent / failed
	sentinel_uptime_seconds

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration)

# Component Health

Loops report their state with SetComponent. A degraded component (for example
the runtime after three consecutive failures of one operation) keeps /health at
200 with status "degraded"; an unhealthy one turns it into 503. /ready requires
runtime, failover and reconciler to be registered and not unhealthy.

# Collector

Collector refreshes derived gauges (uptime, per-container restart budget read
from the rate limiter) on a fixed interval.
*/
package metrics
