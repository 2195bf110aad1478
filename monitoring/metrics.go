// Package monitoring exposes Prometheus metrics for the dashboard service.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"attrition/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attrition"

// Metrics holds the service collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	predictions        *prometheus.CounterVec
	predictionErrors   prometheus.Counter
	predictionDuration prometheus.Histogram
	zeroFilled         *prometheus.CounterVec
	unknownCategories  *prometheus.CounterVec
	uploads            *prometheus.CounterVec
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// NewMetrics registers all collectors, plus Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by label.",
		}, []string{"label"}),
		predictionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Predictions that failed to encode or score.",
		}),
		predictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent scoring a single row.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		zeroFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoding_zero_filled_total",
			Help:      "Schema features defaulted to zero during encoding, by feature.",
		}, []string{"feature"}),
		unknownCategories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoding_unknown_category_total",
			Help:      "Categorical values outside the vocabulary, by field.",
		}, []string{"field"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_uploads_total",
			Help:      "Dataset uploads, by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method and status code.",
		}, []string{"method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.predictions,
		m.predictionErrors,
		m.predictionDuration,
		m.zeroFilled,
		m.unknownCategories,
		m.uploads,
		m.requests,
		m.requestDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObservePrediction(result ml.PredictionResult, elapsed time.Duration) {
	label := "stay"
	if result.Attrition() {
		label = "attrition"
	}
	m.predictions.WithLabelValues(label).Inc()
	m.predictionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePredictionError() {
	m.predictionErrors.Inc()
}

func (m *Metrics) ObserveEncoding(report ml.EncodingReport) {
	for _, feature := range report.ZeroFilled {
		m.zeroFilled.WithLabelValues(feature).Inc()
	}
	for field := range report.UnknownCategories {
		m.unknownCategories.WithLabelValues(field).Inc()
	}
}

// ObserveUpload counts an upload attempt; result is "ok" or a short failure reason.
func (m *Metrics) ObserveUpload(result string) {
	m.uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

var _ ml.Observer = (*Metrics)(nil)
