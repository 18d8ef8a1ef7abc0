package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autoscaler_reconciliation_duration_seconds",
			Help:    "Time taken by one reconciliation tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoscaler_reconciliation_ticks_total",
			Help: "Total number of reconciliation ticks that ran",
		},
	)

	ReconciliationTicksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoscaler_reconciliation_ticks_skipped_total",
			Help: "Total number of ticks skipped because a reload was in progress",
		},
	)

	FormationWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscaler_formation_writes_total",
			Help: "Total number of formation writes by app and result",
		},
		[]string{"app", "result"},
	)

	LifecycleActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscaler_lifecycle_actions_total",
			Help: "Total number of app create/delete actions by app, action and result",
		},
		[]string{"app", "action", "result"},
	)

	AppErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscaler_app_errors_total",
			Help: "Total number of per-app reconciliation failures",
		},
		[]string{"app"},
	)

	PlannedQuantity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autoscaler_planned_quantity",
			Help: "Planned instance quantity for the current minute by app",
		},
		[]string{"app"},
	)

	// Watchdog metrics
	RestartFlag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autoscaler_restart_flag",
			Help: "Last restart flag observed by the watchdog (1 = restart requested)",
		},
		[]string{"app"},
	)

	RestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscaler_restarts_total",
			Help: "Total number of restart actions by app and result",
		},
		[]string{"app", "result"},
	)

	// Configuration metrics
	ReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscaler_reloads_total",
			Help: "Total number of configuration reloads by result",
		},
		[]string{"result"},
	)

	ManagedApps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autoscaler_managed_apps",
			Help: "Number of apps in the current compiled snapshot",
		},
	)

	// Sink metrics
	RemoteWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscaler_remote_writes_total",
			Help: "Total number of remote-write pushes by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationTicksTotal)
	prometheus.MustRegister(ReconciliationTicksSkipped)
	prometheus.MustRegister(FormationWritesTotal)
	prometheus.MustRegister(LifecycleActionsTotal)
	prometheus.MustRegister(AppErrorsTotal)
	prometheus.MustRegister(PlannedQuantity)
	prometheus.MustRegister(RestartFlag)
	prometheus.MustRegister(RestartsTotal)
	prometheus.MustRegister(ReloadsTotal)
	prometheus.MustRegister(ManagedApps)
	prometheus.MustRegister(RemoteWritesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// ResultLabel maps an error onto the result label
func ResultLabel(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
