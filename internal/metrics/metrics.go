package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event results recorded by the dispatcher.
const (
	EventAccepted         = "accepted"
	EventIgnoredExtension = "ignored_extension"
	EventIgnoredInternal  = "ignored_internal"
	EventIgnoredDir       = "ignored_dir"
	EventIgnoredMissing   = "ignored_missing"
	EventIgnoredOutput    = "ignored_output"
)

// Dispatcher metrics
var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reframe_events_total",
			Help: "Filesystem creation events seen by the dispatcher, by result",
		},
		[]string{"result"},
	)

	WatcherErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reframe_watcher_errors_total",
			Help: "Errors reported by the directory event source",
		},
	)
)

// Conversion metrics
var (
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reframe_outcomes_total",
			Help: "Finished job runs by final state and reason",
		},
		[]string{"state", "reason"},
	)

	TranscodeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reframe_transcode_runs_total",
			Help: "ffmpeg invocations by result",
		},
		[]string{"result"},
	)

	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reframe_retries_total",
			Help: "Conversion attempts scheduled after a retryable failure",
		},
	)

	ReadinessTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reframe_readiness_timeouts_total",
			Help: "Files abandoned because their size never stabilized",
		},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reframe_jobs_in_flight",
			Help: "Files currently between detection and a final outcome",
		},
	)

	ConversionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reframe_conversion_duration_seconds",
			Help:    "Wall time of successful ffmpeg conversions",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600},
		},
	)
)

// Claim metrics
var (
	MarkersReclaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reframe_markers_reclaimed_total",
			Help: "Stale claim markers reclaimed, by staleness reason",
		},
		[]string{"reason"},
	)
)
