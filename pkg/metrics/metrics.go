// Package metrics exposes Prometheus metrics for the coordinator and
// supervisor.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psantana5/taskgrid/pkg/broker"
	"github.com/psantana5/taskgrid/pkg/coordinator"
	"github.com/psantana5/taskgrid/pkg/models"
	"github.com/psantana5/taskgrid/pkg/supervisor"
)

// Collector reads live snapshots from the coordinator, supervisor, and
// broker at scrape time; nothing is sampled in between
type Collector struct {
	coord *coordinator.Coordinator
	sup   *supervisor.Supervisor
	brk   broker.Broker

	workersTotal   *prometheus.Desc
	workersActive  *prometheus.Desc
	tasksActive    *prometheus.Desc
	tasksCompleted *prometheus.Desc
	tasksFailed    *prometheus.Desc
	tasksCanceled  *prometheus.Desc
	avgCompletion  *prometheus.Desc
	uptime         *prometheus.Desc
	processes      *prometheus.Desc
	queueDepth     *prometheus.Desc
}

// NewCollector creates a Collector. Any of coord, sup and brk may be nil:
// the coordinator daemon passes no supervisor, the worker agent passes no
// coordinator. Nil sources simply emit no metrics.
func NewCollector(coord *coordinator.Coordinator, sup *supervisor.Supervisor, brk broker.Broker) *Collector {
	return &Collector{
		coord: coord,
		sup:   sup,
		brk:   brk,
		workersTotal: prometheus.NewDesc("taskgrid_workers_total",
			"Registered workers", nil, nil),
		workersActive: prometheus.NewDesc("taskgrid_workers_active",
			"Workers with a fresh heartbeat", nil, nil),
		tasksActive: prometheus.NewDesc("taskgrid_tasks_active",
			"Tasks currently assigned or processing", nil, nil),
		tasksCompleted: prometheus.NewDesc("taskgrid_tasks_completed_total",
			"Tasks completed since start", nil, nil),
		tasksFailed: prometheus.NewDesc("taskgrid_tasks_failed_total",
			"Tasks failed since start", nil, nil),
		tasksCanceled: prometheus.NewDesc("taskgrid_tasks_canceled_total",
			"Tasks canceled since start", nil, nil),
		avgCompletion: prometheus.NewDesc("taskgrid_task_completion_seconds_avg",
			"Running average task completion time", nil, nil),
		uptime: prometheus.NewDesc("taskgrid_uptime_seconds",
			"Coordinator uptime", nil, nil),
		processes: prometheus.NewDesc("taskgrid_worker_processes",
			"Supervised worker processes by status", []string{"status"}, nil),
		queueDepth: prometheus.NewDesc("taskgrid_queue_depth",
			"Broker queue depth", []string{"queue"}, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workersTotal
	ch <- c.workersActive
	ch <- c.tasksActive
	ch <- c.tasksCompleted
	ch <- c.tasksFailed
	ch <- c.tasksCanceled
	ch <- c.avgCompletion
	ch <- c.uptime
	ch <- c.processes
	ch <- c.queueDepth
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.coord != nil {
		status := c.coord.GetSystemStatus()

		ch <- prometheus.MustNewConstMetric(c.workersTotal, prometheus.GaugeValue, float64(status.TotalWorkers))
		ch <- prometheus.MustNewConstMetric(c.workersActive, prometheus.GaugeValue, float64(status.ActiveWorkers))
		ch <- prometheus.MustNewConstMetric(c.tasksActive, prometheus.GaugeValue, float64(status.ActiveTasks))
		ch <- prometheus.MustNewConstMetric(c.tasksCompleted, prometheus.CounterValue, float64(status.CompletedTasks))
		ch <- prometheus.MustNewConstMetric(c.tasksFailed, prometheus.CounterValue, float64(status.FailedTasks))
		ch <- prometheus.MustNewConstMetric(c.tasksCanceled, prometheus.CounterValue, float64(status.CanceledTasks))
		ch <- prometheus.MustNewConstMetric(c.avgCompletion, prometheus.GaugeValue, status.AvgCompletionSeconds)
		ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, status.UptimeSeconds)
	}

	if c.sup != nil {
		byStatus := make(map[supervisor.ProcessStatus]int)
		for _, p := range c.sup.ListProcesses() {
			byStatus[p.Status]++
		}
		for status, count := range byStatus {
			ch <- prometheus.MustNewConstMetric(c.processes, prometheus.GaugeValue,
				float64(count), string(status))
		}
	}

	if c.brk != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, queue := range []string{
			models.QueueVideo, models.QueueAudio, models.QueueImage, models.QueueAI, models.QueueGeneral,
		} {
			depth, err := c.brk.Len(ctx, queue)
			if err != nil {
				continue
			}
			ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue,
				float64(depth), queue)
		}
	}
}

// Handler returns an HTTP handler serving this collector's registry
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
