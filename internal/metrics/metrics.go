// Package metrics exports conversion, storage and HTTP telemetry to
// Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pavel-fokin/file-converter/internal/format"
)

const namespace = "converter"

// otherLabel replaces format labels that did not come from a known token.
const otherLabel = "other"

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	conversions        *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	uploads            prometheus.Counter
	uploadBytes        prometheus.Counter
	sweptFiles         *prometheus.CounterVec
	reclaimedBytes     prometheus.Counter
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New registers the collectors with reg. Collectors already registered by an
// earlier call are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var (
		m   Metrics
		err error
	)
	if m.conversions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversions_total",
		Help:      "Conversion attempts by backend, formats and outcome.",
	}, []string{"backend", "source", "target", "outcome"})); err != nil {
		return nil, err
	}
	if m.conversionDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "conversion_duration_seconds",
		Help:      "Time spent inside a backend.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"backend"})); err != nil {
		return nil, err
	}
	if m.uploads, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Accepted uploads.",
	})); err != nil {
		return nil, err
	}
	if m.uploadBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_bytes_total",
		Help:      "Bytes accepted by uploads.",
	})); err != nil {
		return nil, err
	}
	if m.sweptFiles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swept_files_total",
		Help:      "Expired artifacts handled by sweeps.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.reclaimedBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reclaimed_bytes_total",
		Help:      "Bytes freed by sweeps.",
	})); err != nil {
		return nil, err
	}
	if m.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	if m.requestDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})); err != nil {
		return nil, err
	}

	return &m, nil
}

// MustNew is New that panics on a registration conflict.
func MustNew(reg prometheus.Registerer) *Metrics {
	m, err := New(reg)
	if err != nil {
		panic(err)
	}
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// ObserveConversion records one dispatch. outcome is "success" or an error kind.
// Unknown source and target tokens share one label value.
func (m *Metrics) ObserveConversion(backend, source, target, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(backend, formatLabel(source), formatLabel(target), outcome).Inc()
	if backend != "" {
		m.conversionDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.uploads.Inc()
	m.uploadBytes.Add(float64(size))
}

func (m *Metrics) ObserveSweep(removed, failed int, reclaimed int64) {
	if m == nil {
		return
	}
	m.sweptFiles.WithLabelValues("removed").Add(float64(removed))
	m.sweptFiles.WithLabelValues("failed").Add(float64(failed))
	m.reclaimedBytes.Add(float64(reclaimed))
}

// ObserveRequest records a served request. route is the matched mux pattern.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func formatLabel(f string) string {
	if !format.Known(format.Format(f)) {
		return otherLabel
	}
	return f
}
