package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "safestream_moderation"

	runsTotal           = "runs_total"
	runDurationSeconds  = "run_duration_seconds"
	stageDurationSecs   = "stage_duration_seconds"
	classifierCalls     = "classifier_requests_total"
	runsInFlight        = "runs_in_flight"
	progressEventsTotal = "progress_events_total"

	// Labels
	statusLabel = "status"
	stageLabel  = "stage"
	resultLabel = "result"
)

/**
* Metrics definition
**/
var runsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      runsTotal,
		Help:      "number of moderation runs by final status (safe, flagged, failed, skipped, error)",
	},
	[]string{statusLabel},
)

var runDurationMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      runDurationSeconds,
		Help:      "duration of a whole moderation run",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	},
)

var stageDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      stageDurationSecs,
		Help:      "duration of each pipeline stage partitioned by result",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
	},
	[]string{stageLabel, resultLabel},
)

var classifierCallsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      classifierCalls,
		Help:      "number of frames submitted to the classification service by result",
	},
	[]string{resultLabel},
)

var runsInFlightMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      runsInFlight,
		Help:      "number of moderation runs currently executing in this process",
	},
)

var progressEventsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      progressEventsTotal,
		Help:      "number of progress events by emitted status",
	},
	[]string{statusLabel},
)

func IncreaseRunsTotalMetric(status string) {
	runsTotalMetric.With(prometheus.Labels{statusLabel: status}).Inc()
}

func ObserveRunDuration(d time.Duration) {
	runDurationMetric.Observe(d.Seconds())
}

func ObserveStageDuration(stage string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	stageDurationMetric.With(prometheus.Labels{stageLabel: stage, resultLabel: result}).Observe(d.Seconds())
}

func IncreaseClassifierCallsMetric(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	classifierCallsMetric.With(prometheus.Labels{resultLabel: result}).Inc()
}

// TrackRunInFlight increments the in-flight gauge and returns the func decrementing it.
func TrackRunInFlight() func() {
	runsInFlightMetric.Inc()
	return runsInFlightMetric.Dec
}

func IncreaseProgressEventsMetric(status string) {
	progressEventsMetric.With(prometheus.Labels{statusLabel: status}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(runsTotalMetric)
	prometheus.MustRegister(runDurationMetric)
	prometheus.MustRegister(stageDurationMetric)
	prometheus.MustRegister(classifierCallsMetric)
	prometheus.MustRegister(runsInFlightMetric)
	prometheus.MustRegister(progressEventsMetric)
}
