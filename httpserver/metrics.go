package httpserver

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var buildInfoMetric = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "pmtiles",
	Name:      "buildinfo",
}, []string{"version", "revision"})

func init() {
	if err := prometheus.Register(buildInfoMetric); err != nil {
		log.Println("error registering build info metric:", err)
	}
}

// SetBuildInfo publishes the running binary's version and commit as a
// static gauge, for dashboards that join on it.
func SetBuildInfo(version, commit string) {
	buildInfoMetric.WithLabelValues(version, commit).Set(1)
}

type metrics struct {
	requests        *prometheus.CounterVec
	responseSize    *prometheus.HistogramVec
	requestDuration *prometheus.HistogramVec
	reloads         *prometheus.CounterVec
}

type requestTracker struct {
	finished bool
	start    time.Time
	metrics  *metrics
}

func (m *metrics) startRequest() *requestTracker {
	return &requestTracker{start: time.Now(), metrics: m}
}

func (r *requestTracker) finish(ctx context.Context, archive, handler string, status, responseSize int) {
	if r.finished {
		return
	}
	r.finished = true
	statusString := strconv.Itoa(status)
	if status == 404 {
		// excluded from cardinality: a flood of requests for archives that
		// don't exist shouldn't blow up the archive label's cardinality.
		archive = ""
	} else if errors.Is(ctx.Err(), context.Canceled) {
		statusString = "canceled"
	}
	labels := []string{archive, handler, statusString}
	r.metrics.requests.WithLabelValues(labels...).Inc()
	r.metrics.responseSize.WithLabelValues(labels...).Observe(float64(responseSize))
	r.metrics.requestDuration.WithLabelValues(labels...).Observe(time.Since(r.start).Seconds())
}

func (m *metrics) reloadArchive(name string) {
	m.reloads.WithLabelValues(name).Inc()
}

func register[K prometheus.Collector](logger *log.Logger, metric K) K {
	if err := prometheus.Register(metric); err != nil {
		logger.Println(err)
	}
	return metric
}

func createMetrics(scope string, logger *log.Logger) *metrics {
	namespace := "pmtiles"
	sizeBuckets := prometheus.ExponentialBuckets(1024, 2, 12)

	return &metrics{
		requests: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "requests_total",
			Help:      "Overall number of requests to the service",
		}, []string{"archive", "handler", "status"})),
		responseSize: register(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "response_size_bytes",
			Help:      "Overall response size in bytes",
			Buckets:   sizeBuckets,
		}, []string{"archive", "handler", "status"})),
		requestDuration: register(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "request_duration_seconds",
			Help:      "Overall request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"archive", "handler", "status"})),
		reloads: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "archive_reloads_total",
			Help:      "Number of times an archive's reader was reopened",
		}, []string{"archive"})),
	}
}
