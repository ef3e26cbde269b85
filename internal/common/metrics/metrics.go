// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// TutorSearchCandidates observes how many candidates entered scoring per search.
	TutorSearchCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_search_candidates",
			Help:    "Candidates scored per tutor search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		},
		[]string{"source"},
	)

	DeletionPreviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_deletion_previews_total",
			Help: "Deletion previews computed, by strategy",
		},
		[]string{"strategy"},
	)

	DeletionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_deletions_total",
			Help: "Account deletion attempts, by outcome",
		},
		[]string{"outcome"},
	)
)
