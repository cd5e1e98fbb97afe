package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscaler_jobs_total",
			Help: "Total number of upscale jobs by media kind and terminal status",
		},
		[]string{"kind", "status"},
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscaler_jobs_active",
			Help: "Number of jobs currently in flight",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upscaler_job_duration_seconds",
			Help:    "End-to-end job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"kind"},
	)

	JobStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upscaler_job_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300, 600},
		},
		[]string{"kind", "stage"},
	)

	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscaler_admissions_total",
			Help: "Entitlement decisions by outcome",
		},
		[]string{"outcome"},
	)

	ProgressTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upscaler_progress_ticks_total",
			Help: "Total number of progress updates emitted",
		},
	)

	ProgressTickErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upscaler_progress_tick_errors_total",
			Help: "Progress updates that failed to deliver and were swallowed",
		},
	)

	SourceBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upscaler_source_bytes",
			Help:    "Size of submitted source media in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"kind"},
	)

	JanitorSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upscaler_janitor_swept_total",
			Help: "Temporary files removed by the janitor",
		},
	)

	ArchiveSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upscaler_archive_swept_total",
			Help: "Archived results removed by the retention sweep",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upscaler_app_info",
			Help: "Application build information",
		},
		[]string{"version", "environment"},
	)
)

func SetAppInfo(version, environment string) {
	AppInfo.WithLabelValues(version, environment).Set(1)
}
