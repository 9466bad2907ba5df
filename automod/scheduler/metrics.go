package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var workItemsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_scheduler_work_items_added_total",
	Help: "Total number of events added to the scheduler",
}, []string{"pool"})

var workItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_scheduler_work_items_processed_total",
	Help: "Total number of events processed by the scheduler",
}, []string{"pool"})

var workItemsActive = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_scheduler_work_items_active_total",
	Help: "Total number of events passed into a worker",
}, []string{"pool"})

var workersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "automod_scheduler_workers_active",
	Help: "Number of workers currently active",
}, []string{"pool"})
