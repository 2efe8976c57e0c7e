package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LJTian/TariffHub/internal/aggregator"
)

// Collector 每轮快照生成后刷新的数据源指标
type Collector struct {
	registry *prometheus.Registry

	feedItems   *prometheus.GaugeVec
	feedErrors  *prometheus.GaugeVec
	feedFailed  *prometheus.CounterVec
	runs        prometheus.Counter
	runDuration prometheus.Histogram
	lastRun     prometheus.Gauge
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		feedItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tariffhub",
			Name:      "feed_items",
			Help:      "Items returned by each feed in the latest snapshot.",
		}, []string{"feed", "group"}),
		feedErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tariffhub",
			Name:      "feed_errors",
			Help:      "Error strings recorded for each feed in the latest snapshot.",
		}, []string{"feed", "group"}),
		feedFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tariffhub",
			Name:      "feed_runs_with_errors_total",
			Help:      "Runs in which a feed recorded at least one error.",
		}, []string{"feed", "group"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tariffhub",
			Name:      "snapshot_runs_total",
			Help:      "Snapshots assembled since start.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tariffhub",
			Name:      "snapshot_duration_seconds",
			Help:      "Wall time to fetch all feeds and assemble a snapshot.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tariffhub",
			Name:      "last_snapshot_timestamp_seconds",
			Help:      "Unix time of the latest assembled snapshot.",
		}),
	}
	reg.MustRegister(c.feedItems, c.feedErrors, c.feedFailed, c.runs, c.runDuration, c.lastRun)
	return c
}

// Observe 记录一轮快照的结果
func (c *Collector) Observe(snap *aggregator.Snapshot, took time.Duration) {
	for _, r := range snap.Results() {
		c.feedItems.WithLabelValues(r.Name, r.Group).Set(float64(len(r.Items)))
		c.feedErrors.WithLabelValues(r.Name, r.Group).Set(float64(len(r.Errors)))
		if len(r.Errors) > 0 {
			c.feedFailed.WithLabelValues(r.Name, r.Group).Inc()
		}
	}
	c.runs.Inc()
	c.runDuration.Observe(took.Seconds())
	c.lastRun.SetToCurrentTime()
}

// Handler 暴露 /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
