package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/handscan/handscan/internal/jobqueue"
)

// QueueStatsSource is satisfied by *jobqueue.JobQueue.
type QueueStatsSource interface {
	GetStats() jobqueue.JobStatsSnapshot
}

// QueueCollector exports job queue statistics. Values are read from the
// queue on every scrape, so nothing has to be pushed.
type QueueCollector struct {
	source QueueStatsSource

	jobs        *prometheus.Desc
	active      *prometheus.Desc
	utilization *prometheus.Desc
	retries     *prometheus.Desc
}

// NewQueueCollector creates a collector for source and registers it.
func NewQueueCollector(registry prometheus.Registerer, source QueueStatsSource) (*QueueCollector, error) {
	c := &QueueCollector{
		source: source,
		jobs: prometheus.NewDesc(
			"handscan_queue_jobs_total",
			"Jobs handled by the detection queue partitioned by outcome.",
			[]string{"outcome"}, nil,
		),
		active: prometheus.NewDesc(
			"handscan_queue_active_jobs",
			"Jobs currently pending or running in the detection queue.",
			[]string{"state"}, nil,
		),
		utilization: prometheus.NewDesc(
			"handscan_queue_utilization_percent",
			"Share of the queue capacity in use.",
			nil, nil,
		),
		retries: prometheus.NewDesc(
			"handscan_queue_retry_attempts_total",
			"Retries scheduled by the detection queue.",
			nil, nil,
		),
	}
	if err := registry.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Describe implements the Collector interface
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobs
	ch <- c.active
	ch <- c.utilization
	ch <- c.retries
}

// Collect implements the Collector interface
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.GetStats()

	outcomes := map[string]int{
		"enqueued":  stats.TotalJobs,
		"succeeded": stats.SuccessfulJobs,
		"failed":    stats.FailedJobs,
		"stale":     stats.StaleJobs,
		"dropped":   stats.DroppedJobs,
		"deduped":   stats.DedupedJobs,
	}
	for outcome, n := range outcomes {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.CounterValue, float64(n), outcome)
	}

	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(stats.PendingJobs), "pending")
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(stats.RunningJobs), "running")
	ch <- prometheus.MustNewConstMetric(c.utilization, prometheus.GaugeValue, stats.QueueUtilization)
	ch <- prometheus.MustNewConstMetric(c.retries, prometheus.CounterValue, float64(stats.RetryAttempts))
}
