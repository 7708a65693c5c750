// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Inference metrics
	PredictionsTotal   *prometheus.CounterVec
	PredictionLatency  prometheus.Histogram
	SLOOverruns        prometheus.Counter
	ValidationFailures *prometheus.CounterVec
	FeatureExtractions prometheus.Counter

	// Pipeline metrics
	StageOutcomes     *prometheus.CounterVec
	ScoreDistribution prometheus.Histogram

	// Threshold metrics
	TipThresholdLamports prometheus.Gauge
	ImpactThresholdBps   prometheus.Gauge
	ThresholdAdjustments prometheus.Counter

	// Drift metrics
	DriftChecks      prometheus.Counter
	DriftAlerts      *prometheus.CounterVec
	DriftScore       *prometheus.GaugeVec
	DriftHistorySize prometheus.Gauge

	// Shadow metrics
	ShadowSubmitted  prometheus.Counter
	ShadowDropped    prometheus.Counter
	ShadowFlushed    prometheus.Counter
	ShadowFlushFails prometheus.Counter
	ShadowQueueDepth prometheus.Gauge

	// Stream metrics
	StreamEventsTotal  prometheus.Counter
	StreamDecodeErrors prometheus.Counter
	StreamReconnects   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mev_engine"
	}

	return &Metrics{
		// Inference metrics
		PredictionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "predictions_total",
			Help:      "Total number of predictions by risk band",
		}, []string{"band"}),
		PredictionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "prediction_latency_seconds",
			Help:      "End-to-end prediction latency",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		SLOOverruns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "slo_overruns_total",
			Help:      "Total number of predictions exceeding the latency target",
		}),
		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "validation_failures_total",
			Help:      "Total number of feature vectors rejected by field",
		}, []string{"field"}),
		FeatureExtractions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "feature_extractions_total",
			Help:      "Total number of feature vectors extracted",
		}),

		// Pipeline metrics
		StageOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_outcomes_total",
			Help:      "Total number of pipeline outcomes by stage and result",
		}, []string{"stage", "result"}),
		ScoreDistribution: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "risk_score",
			Help:      "Distribution of final risk scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		// Threshold metrics
		TipThresholdLamports: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "thresholds",
			Name:      "tip_lamports",
			Help:      "Current adjusted tip threshold in lamports",
		}),
		ImpactThresholdBps: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "thresholds",
			Name:      "price_impact_bps",
			Help:      "Current adjusted price impact threshold in basis points",
		}),
		ThresholdAdjustments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thresholds",
			Name:      "adjustments_total",
			Help:      "Total number of market condition updates applied",
		}),

		// Drift metrics
		DriftChecks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drift",
			Name:      "checks_total",
			Help:      "Total number of drift calculations",
		}),
		DriftAlerts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drift",
			Name:      "alerts_total",
			Help:      "Total number of drift verdicts by method",
		}, []string{"method"}),
		DriftScore: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "drift",
			Name:      "score",
			Help:      "Most recent drift score by method",
		}, []string{"method"}),
		DriftHistorySize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "drift",
			Name:      "history_size",
			Help:      "Current number of vectors in the drift window",
		}),

		// Shadow metrics
		ShadowSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shadow",
			Name:      "submitted_total",
			Help:      "Total number of shadow predictions queued",
		}),
		ShadowDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shadow",
			Name:      "dropped_total",
			Help:      "Total number of shadow predictions discarded due to backpressure",
		}),
		ShadowFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shadow",
			Name:      "flushed_total",
			Help:      "Total number of shadow predictions persisted",
		}),
		ShadowFlushFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shadow",
			Name:      "flush_failures_total",
			Help:      "Total number of failed shadow log flushes",
		}),
		ShadowQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "shadow",
			Name:      "queue_depth",
			Help:      "Current depth of the shadow hand-off queue",
		}),

		// Stream metrics
		StreamEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Total number of transaction events received",
		}),
		StreamDecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "decode_errors_total",
			Help:      "Total number of undecodable stream frames",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnect attempts",
		}),
	}
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPrediction records one completed prediction.
func RecordPrediction(band string, latencySeconds float64, overSLO bool) {
	DefaultMetrics.PredictionsTotal.WithLabelValues(band).Inc()
	DefaultMetrics.PredictionLatency.Observe(latencySeconds)
	if overSLO {
		DefaultMetrics.SLOOverruns.Inc()
	}
}

// RecordValidationFailure records a rejected feature vector.
func RecordValidationFailure(field string) {
	DefaultMetrics.ValidationFailures.WithLabelValues(field).Inc()
}

// RecordStageOutcome records a pipeline stage result.
func RecordStageOutcome(stage, result string) {
	DefaultMetrics.StageOutcomes.WithLabelValues(stage, result).Inc()
}

// RecordScore records a final risk score.
func RecordScore(score float64) {
	DefaultMetrics.ScoreDistribution.Observe(score)
}

// UpdateThresholds updates the adjusted threshold gauges.
func UpdateThresholds(tipLamports uint64, impactBps float64) {
	DefaultMetrics.TipThresholdLamports.Set(float64(tipLamports))
	DefaultMetrics.ImpactThresholdBps.Set(float64(impactBps))
	DefaultMetrics.ThresholdAdjustments.Inc()
}

// RecordDrift records one drift calculation.
func RecordDrift(method string, score float64, fired bool) {
	DefaultMetrics.DriftScore.WithLabelValues(method).Set(score)
	if fired {
		DefaultMetrics.DriftAlerts.WithLabelValues(method).Inc()
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
