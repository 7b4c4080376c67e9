// Package collector provides a Prometheus collector for the energy dashboard.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/cache"
)

const namespace = "energy_dashboard"

// DashboardCollector exposes upstream fetch, view lifecycle and meter list
// cache metrics. It also receives view events as a dashboard.Metrics sink.
type DashboardCollector struct {
	cache *cache.Cache

	// Meter list metrics, computed from the cache on scrape
	meterCount  *prometheus.Desc
	cacheHits   *prometheus.Desc
	cacheMisses *prometheus.Desc
	cacheAge    *prometheus.Desc
	lastPoll    *prometheus.Desc

	// Self-observability metrics
	fetchDuration *prometheus.HistogramVec
	fetchErrors   *prometheus.CounterVec
	activeViews   prometheus.Gauge
	staleReports  prometheus.Counter
}

// New creates a new DashboardCollector reading meter list state from ca.
func New(ca *cache.Cache) *DashboardCollector {
	return &DashboardCollector{
		cache: ca,
		meterCount: prometheus.NewDesc(
			namespace+"_meters",
			"Number of meters in the most recently polled meter list",
			nil, nil,
		),
		cacheHits: prometheus.NewDesc(
			namespace+"_meter_cache_hits_total",
			"Total number of meter list cache hits",
			nil, nil,
		),
		cacheMisses: prometheus.NewDesc(
			namespace+"_meter_cache_misses_total",
			"Total number of meter list cache misses",
			nil, nil,
		),
		cacheAge: prometheus.NewDesc(
			namespace+"_meter_cache_age_seconds",
			"Age of the cached meter list in seconds",
			nil, nil,
		),
		lastPoll: prometheus.NewDesc(
			namespace+"_last_successful_poll_timestamp",
			"Unix timestamp of the last successful meter list poll",
			nil, nil,
		),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time to fetch data from the energy report API",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total number of failed energy report API fetches",
		}, []string{"endpoint"}),
		activeViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_views",
			Help:      "Number of currently mounted dashboard views",
		}),
		staleReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_reports_discarded_total",
			Help:      "Total number of report responses discarded because the selection had changed",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *DashboardCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.meterCount
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cacheAge
	ch <- c.lastPoll
	c.fetchDuration.Describe(ch)
	c.fetchErrors.Describe(ch)
	c.activeViews.Describe(ch)
	c.staleReports.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *DashboardCollector) Collect(ch chan<- prometheus.Metric) {
	c.fetchDuration.Collect(ch)
	c.fetchErrors.Collect(ch)
	c.activeViews.Collect(ch)
	c.staleReports.Collect(ch)

	hits, misses := c.cache.Stats()
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(hits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(misses))

	if !c.cache.IsPopulated() {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.meterCount, prometheus.GaugeValue, float64(c.cache.Len()))
	ch <- prometheus.MustNewConstMetric(c.cacheAge, prometheus.GaugeValue, c.cache.Age().Seconds())
	ch <- prometheus.MustNewConstMetric(c.lastPoll, prometheus.GaugeValue, float64(c.cache.FetchedAt().Unix()))
}

// ObserveFetch records one upstream fetch. Cancelled fetches are not errors.
func (c *DashboardCollector) ObserveFetch(endpoint string, d time.Duration, err error) {
	c.fetchDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	if err != nil && !errors.Is(err, context.Canceled) {
		c.fetchErrors.WithLabelValues(endpoint).Inc()
	}
}

// ViewMounted records a newly mounted view.
func (c *DashboardCollector) ViewMounted() {
	c.activeViews.Inc()
}

// ViewUnmounted records a torn down view.
func (c *DashboardCollector) ViewUnmounted() {
	c.activeViews.Dec()
}

// StaleReportDiscarded records a report response that arrived for an old selection.
func (c *DashboardCollector) StaleReportDiscarded() {
	c.staleReports.Inc()
}
