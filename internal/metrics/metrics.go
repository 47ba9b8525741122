// Package metrics exposes search engine activity as Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/hypersearch/internal/optimization"
)

const namespace = "hypersearch"

// Collectors implements optimization.Observer and optimization.ProgressSink.
type Collectors struct {
	evaluations   *prometheus.CounterVec
	evalDuration  *prometheus.HistogramVec
	jobs          *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	bestScore     *prometheus.GaugeVec
	jobProgress   *prometheus.GaugeVec
	activeSearches prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Positions evaluated, split by whether the score came from memory.",
		}, []string{"model", "cached"}),
		evalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent scoring a position, including memory lookups.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"model"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Search jobs finished, by terminal status.",
		}, []string{"model", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of a search job.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		bestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_score",
			Help:      "Best score of the most recently completed job per model.",
		}, []string{"model"}),
		jobProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_progress_ratio",
			Help:      "Fraction of the iteration budget consumed by a running job.",
		}, []string{"job_id", "model"}),
		activeSearches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_searches",
			Help:      "Searches currently running in the service.",
		}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range c.collectors() {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.evaluations, c.evalDuration, c.jobs, c.jobDuration,
		c.bestScore, c.jobProgress, c.activeSearches,
	}
}

// EvaluationObserved implements optimization.Observer.
func (c *Collectors) EvaluationObserved(model string, cached bool, elapsed time.Duration) {
	c.evaluations.WithLabelValues(model, strconv.FormatBool(cached)).Inc()
	c.evalDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// JobFinished implements optimization.Observer.
func (c *Collectors) JobFinished(model string, status optimization.JobStatus, elapsed time.Duration, bestScore float64) {
	c.jobs.WithLabelValues(model, string(status)).Inc()
	c.jobDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	if status == optimization.JobCompleted {
		c.bestScore.WithLabelValues(model).Set(bestScore)
	}
}

// Report implements optimization.ProgressSink.
func (c *Collectors) Report(u optimization.ProgressUpdate) {
	c.jobProgress.WithLabelValues(strconv.Itoa(u.JobID), u.Model).Set(u.Fraction())
}

// SearchStarted increments the active search gauge.
func (c *Collectors) SearchStarted() { c.activeSearches.Inc() }

// SearchFinished decrements the active search gauge.
func (c *Collectors) SearchFinished() { c.activeSearches.Dec() }
