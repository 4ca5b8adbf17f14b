package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	lines       prometheus.Gauge
	changes     *prometheus.CounterVec
	lineErrors  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "timetablewatch_scrape_runs_total",
			Help: "Scrape runs by outcome.",
		}, []string{"result"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetablewatch_scrape_duration_seconds",
			Help:    "Wall time of completed scrape runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		lines: f.NewGauge(prometheus.GaugeOpts{
			Name: "timetablewatch_lines",
			Help: "Lines found by the last completed scrape.",
		}),
		changes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "timetablewatch_line_changes_total",
			Help: "Reconciled line changes by kind.",
		}, []string{"kind"}),
		lineErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "timetablewatch_line_errors_total",
			Help: "Per-line failures by pipeline stage.",
		}, []string{"stage"}),
	}
}

func (m *Metrics) observeRun(res *Result, err error, elapsed time.Duration) {
	switch {
	case err != nil:
		m.runs.WithLabelValues("failed").Inc()
		return
	case res.Skipped:
		m.runs.WithLabelValues("skipped").Inc()
		return
	}

	m.runs.WithLabelValues("ok").Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.lines.Set(float64(len(res.Diff.Lines)))
	m.changes.WithLabelValues("created").Add(float64(len(res.Diff.Created)))
	m.changes.WithLabelValues("deleted").Add(float64(len(res.Diff.Deleted)))
	m.changes.WithLabelValues("changed").Add(float64(len(res.Diff.Changed)))
}
