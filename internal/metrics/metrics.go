// Package metrics declares the Prometheus collectors exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pubimages"

var (
	// UploadsTotal counts finished uploads by result (ok, decode_error, remote_error, stale).
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads processed, by result.",
		},
		[]string{"result"},
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent generating thumbnails and writing both documents.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	ThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnails_total",
			Help:      "Thumbnails rendered, by size and result.",
		},
		[]string{"size", "result"},
	)

	WatchReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_reconnects_total",
			Help:      "Times the publication subscription was re-established after a failure.",
		},
	)

	WatchMaterializedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_materialized_total",
			Help:      "Records created locally from remote publication entries.",
		},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnail_cache_hits_total",
			Help:      "Thumbnail reads served from the LRU cache.",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnail_cache_misses_total",
			Help:      "Thumbnail reads that went to the remote store.",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RegistryCollector exposes registry sizes as gauges read at scrape time.
func RegistryCollector(count func() int, pending func() int) prometheus.Collector {
	return &registryCollector{
		count:   count,
		pending: pending,
		filesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "registry", "files"),
			"Files tracked in the local registry.", nil, nil),
		pendingDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "registry", "pending_files"),
			"Files selected but not yet uploaded.", nil, nil),
	}
}

type registryCollector struct {
	count       func() int
	pending     func() int
	filesDesc   *prometheus.Desc
	pendingDesc *prometheus.Desc
}

func (c *registryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.filesDesc
	ch <- c.pendingDesc
}

func (c *registryCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.filesDesc, prometheus.GaugeValue, float64(c.count()))
	ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, float64(c.pending()))
}
