package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels runs that computed and persisted a report.
	OutcomeSuccess = "success"
	// OutcomeDegraded labels runs whose report was computed but not persisted.
	OutcomeDegraded = "degraded"
	// OutcomeError labels runs that produced no report.
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "runs_total",
			Help:      "Total number of detection runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "driftwatch",
			Name:      "run_seconds",
			Help:      "Detection run latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	driftedFeatures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "driftwatch",
			Name:      "drifted_features",
			Help:      "Number of features flagged as drifted in the latest report.",
		},
	)

	driftedFeatureRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "driftwatch",
			Name:      "drifted_feature_ratio",
			Help:      "Fraction of evaluated features flagged as drifted in the latest report.",
		},
	)

	retrainDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "retrain_decisions_total",
			Help:      "Retrain decisions emitted, partitioned by verdict.",
		},
		[]string{"verdict"},
	)
)

// Register attaches driftwatch collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		driftedFeatures,
		driftedFeatureRatio,
		retrainDecisionsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a detection run duration and its outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeDegraded, OutcomeError:
	default:
		outcome = OutcomeSuccess
	}
	runsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// RecordReport publishes the drifted-feature gauges for the latest report.
func RecordReport(driftedCount int, driftedRatio float64) {
	driftedFeatures.Set(float64(driftedCount))
	driftedFeatureRatio.Set(driftedRatio)
}

// RecordDecision counts an emitted retrain decision.
func RecordDecision(shouldRetrain bool) {
	verdict := "hold"
	if shouldRetrain {
		verdict = "retrain"
	}
	retrainDecisionsTotal.WithLabelValues(verdict).Inc()
}
