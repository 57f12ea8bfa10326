package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interprod_jobs_submitted_total",
		Help: "Total number of jobs accepted for execution",
	})
	jobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "interprod_jobs_running",
		Help: "Number of jobs currently executing the external tool",
	})
	jobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interprod_jobs_completed_total",
		Help: "Total number of jobs that produced results",
	})
	jobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interprod_jobs_failed_total",
		Help: "Total number of jobs that failed",
	})
	jobsTimedOutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interprod_jobs_timed_out_total",
		Help: "Total number of jobs killed at the wall-clock timeout",
	})
	jobsCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interprod_jobs_cancelled_total",
		Help: "Total number of jobs cancelled by callers",
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "interprod_queue_depth",
		Help: "Number of jobs waiting for an execution slot",
	})
)

func init() {
	prometheus.MustRegister(
		jobsSubmittedTotal,
		jobsRunning,
		jobsCompletedTotal,
		jobsFailedTotal,
		jobsTimedOutTotal,
		jobsCancelledTotal,
		queueDepth,
	)
}
