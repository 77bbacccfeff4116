package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

// ReconcileMetrics implements ports.ReconcileMetrics.
type ReconcileMetrics struct {
	service  string
	registry *prometheus.Registry

	runTotal        *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runInFlight     prometheus.Gauge
	outcomeTotal    *prometheus.CounterVec
	reviewTotal     *prometheus.CounterVec
	matchPercentage *prometheus.HistogramVec
}

// NewReconcileMetrics registers on registry, or on a fresh one when nil.
func NewReconcileMetrics(service string, registry *prometheus.Registry) *ReconcileMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total reconciliation runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "run_duration_seconds",
			Help:      "Reconciliation run duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	runInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_in_flight",
			Help:      "Number of in-flight reconciliation runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	outcomeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "outcomes_total",
			Help:      "Classified bid lines and catalog items by outcome.",
		},
		[]string{"service", "outcome"},
	)
	reviewTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "needs_review_total",
			Help:      "Outcomes flagged for manual review.",
		},
		[]string{"service"},
	)
	matchPercentage := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "match_percentage",
			Help:      "Share of catalog items matched per run.",
			Buckets:   []float64{10, 25, 50, 75, 90, 95, 99, 100},
		},
		[]string{"service"},
	)

	registry.MustRegister(runTotal, runDuration, runInFlight, outcomeTotal, reviewTotal, matchPercentage)

	return &ReconcileMetrics{
		service:         service,
		registry:        registry,
		runTotal:        runTotal,
		runDuration:     runDuration,
		runInFlight:     runInFlight,
		outcomeTotal:    outcomeTotal,
		reviewTotal:     reviewTotal,
		matchPercentage: matchPercentage,
	}
}

func (m *ReconcileMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ReconcileMetrics) StartRun() {
	m.runInFlight.Inc()
}

func (m *ReconcileMetrics) FinishRun(duration time.Duration, err error) {
	m.runInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.runTotal.WithLabelValues(m.service, status).Inc()
	m.runDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *ReconcileMetrics) ObserveSummary(summary domain.Summary) {
	m.outcomeTotal.WithLabelValues(m.service, string(domain.OutcomeExact)).Add(float64(summary.ExactCount))
	m.outcomeTotal.WithLabelValues(m.service, string(domain.OutcomeFuzzy)).Add(float64(summary.FuzzyCount))
	m.outcomeTotal.WithLabelValues(m.service, string(domain.OutcomeExtra)).Add(float64(summary.ExtraCount))
	m.outcomeTotal.WithLabelValues(m.service, string(domain.OutcomeNoBid)).Add(float64(summary.NoBidCount))
	m.reviewTotal.WithLabelValues(m.service).Add(float64(summary.NeedsReviewCount))
	if summary.TotalCatalogItems > 0 {
		m.matchPercentage.WithLabelValues(m.service).Observe(summary.MatchPercentage)
	}
}
