package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel"

var (
	// Probe metrics
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total probes by target, kind and outcome",
		},
		[]string{"target", "kind", "status"},
	)

	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Probe latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"target"},
	)

	TargetUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_up",
			Help:      "Whether the last probe of a target passed (1 = up, 0 = down)",
		},
		[]string{"target"},
	)

	// Failover metrics
	ActiveTarget = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failover_active_target",
			Help:      "Currently active resolver (1 = active)",
		},
		[]string{"target"},
	)

	FailoverEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failover_events_total",
			Help:      "Active resolver changes by origin, destination and reason",
		},
		[]string{"from", "to", "reason"},
	)

	NoTargetsAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failover_no_targets_available",
			Help:      "Whether no resolver is currently reachable",
		},
	)

	// Reconciler metrics
	ReconcileCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_cycles_total",
			Help:      "Total reconciliation cycles",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Reconciliation cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	LastReconcileTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_last_timestamp_seconds",
			Help:      "Unix time of the last reconciliation cycle",
		},
	)

	ContainerRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_restarts_total",
			Help:      "Container restarts by container and trigger (reactive or preventive)",
		},
		[]string{"container", "trigger"},
	)

	RestartsRefusedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_restarts_refused_total",
			Help:      "Restarts refused by the hourly rate limit",
		},
		[]string{"container"},
	)

	NetworkRecreationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "network_recreations_total",
			Help:      "Total shared network recreations",
		},
	)

	RuntimeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_errors_total",
			Help:      "Container runtime operation failures by operation",
		},
		[]string{"operation"},
	)

	RestartBudget = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "restart_budget_remaining",
			Help:      "Restarts still allowed within the trailing hour",
		},
		[]string{"container"},
	)

	// Analyzer metrics
	ErrorObservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_errors_total",
			Help:      "Classified log error lines by container and category",
		},
		[]string{"container", "category"},
	)

	ErrorRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_error_rate_per_minute",
			Help:      "Recent error rate per container",
		},
		[]string{"container"},
	)

	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Failure predictions fired by container and category",
		},
		[]string{"container", "category"},
	)

	LogStreamReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_stream_reconnects_total",
			Help:      "Log stream reopen attempts by container",
		},
		[]string{"container"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Alert deliveries by outcome",
		},
		[]string{"status"},
	)

	Uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
	)
)

func init() {
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(TargetUp)
	prometheus.MustRegister(ActiveTarget)
	prometheus.MustRegister(FailoverEventsTotal)
	prometheus.MustRegister(NoTargetsAvailable)
	prometheus.MustRegister(ReconcileCyclesTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(LastReconcileTimestamp)
	prometheus.MustRegister(ContainerRestartsTotal)
	prometheus.MustRegister(RestartsRefusedTotal)
	prometheus.MustRegister(NetworkRecreationsTotal)
	prometheus.MustRegister(RuntimeErrorsTotal)
	prometheus.MustRegister(RestartBudget)
	prometheus.MustRegister(ErrorObservationsTotal)
	prometheus.MustRegister(ErrorRate)
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(LogStreamReconnectsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(Uptime)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
