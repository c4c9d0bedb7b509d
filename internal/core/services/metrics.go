package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heliogrid_jobs_created_total",
		Help: "Total number of jobs submitted",
	})
	JobsAssignedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heliogrid_jobs_assigned_total",
		Help: "Total number of jobs claimed by providers",
	})
	JobsRequeuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heliogrid_jobs_requeued_total",
		Help: "Total number of jobs returned to the queue after a failed config generation",
	})
	JobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heliogrid_jobs_completed_total",
		Help: "Total number of jobs completed successfully",
	})
	JobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heliogrid_jobs_failed_total",
		Help: "Total number of jobs reported failed",
	})
	PaymentsRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heliogrid_payments_recorded_total",
		Help: "Total number of payment rows written",
	})
	AmountChargedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heliogrid_amount_charged_total",
		Help: "Sum of successfully charged amounts",
	})
)

func init() {
	prometheus.MustRegister(
		JobsCreatedTotal, JobsAssignedTotal, JobsRequeuedTotal,
		JobsCompletedTotal, JobsFailedTotal,
		PaymentsRecordedTotal, AmountChargedTotal,
	)
}
