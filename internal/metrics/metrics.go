// Package metrics exposes dashboard client metrics on a private Prometheus registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	saga "github.com/MicroTeam-4-0-no-monoliticos/entrega-final"
)

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport"
	OutcomeStatus    = "http_status"
	OutcomeDecode    = "decode"
	OutcomeNotFound  = "not_found"
	OutcomeOther     = "error"
)

// Metrics wraps Prometheus metrics for the saga dashboard.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	reconciliations *prometheus.CounterVec
	displayLabels   *prometheus.GaugeVec
	fallbacks       prometheus.Counter
}

// New creates a metrics registry and registers dashboard metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_client_requests_total",
		Help: "Total number of upstream requests by outcome.",
	}, []string{"service", "endpoint", "outcome"})

	requestLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saga_client_request_duration_seconds",
		Help:    "Upstream request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "outcome"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "saga_client_requests_in_flight",
		Help: "Upstream requests currently in flight.",
	})

	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_reconciliations_total",
		Help: "Total number of saga reconciliations by saga state.",
	}, []string{"state"})

	displayLabels := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "saga_display_labels",
		Help: "Display labels in the last reconciled listing.",
	}, []string{"kind", "label"})

	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "saga_fallback_total",
		Help: "Total number of detail views served from the listing copy.",
	})

	registry.MustRegister(requests, requestLatency, inFlight, reconciliations, displayLabels, fallbacks)

	return &Metrics{
		registry:        registry,
		requests:        requests,
		requestLatency:  requestLatency,
		inFlight:        inFlight,
		reconciliations: reconciliations,
		displayLabels:   displayLabels,
		fallbacks:       fallbacks,
	}
}

// Handler exposes the metrics registry via HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished upstream request.
func (m *Metrics) ObserveRequest(service, endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(service, endpoint, outcome).Inc()
	m.requestLatency.WithLabelValues(service, outcome).Observe(d.Seconds())
}

// IncReconciled counts a reconciliation of a saga in state.
func (m *Metrics) IncReconciled(state saga.SagaState) {
	if m == nil {
		return
	}
	st := string(state)
	if st == "" {
		st = "unknown"
	}
	m.reconciliations.WithLabelValues(st).Inc()
}

// IncFallback counts a detail view served from the listing copy.
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// SetListingLabels replaces the label gauge with totals across views.
func (m *Metrics) SetListingLabels(views []saga.SagaView) {
	if m == nil {
		return
	}
	m.displayLabels.Reset()
	for _, label := range []saga.DisplayLabel{saga.LabelPending, saga.LabelSucceeded, saga.LabelFailed} {
		m.displayLabels.WithLabelValues("step", string(label)).Set(0)
		m.displayLabels.WithLabelValues("compensation", string(label)).Set(0)
	}
	for _, v := range views {
		sum := saga.Summarize(v.Reconciliation)
		for label, n := range sum.Steps {
			m.displayLabels.WithLabelValues("step", string(label)).Add(float64(n))
		}
		for label, n := range sum.Compensations {
			m.displayLabels.WithLabelValues("compensation", string(label)).Add(float64(n))
		}
	}
}

// Events returns client hooks that feed these metrics.
func (m *Metrics) Events() *saga.ClientEvents {
	return &saga.ClientEvents{
		OnRequestStart: func(service, endpoint string) {
			m.inFlight.Inc()
		},
		OnRequestComplete: func(ctx context.Context, service, endpoint string, statusCode int, d time.Duration) {
			m.inFlight.Dec()
			m.ObserveRequest(service, endpoint, OutcomeOK, d)
		},
		OnRequestFailed: func(ctx context.Context, service, endpoint string, err error, d time.Duration) {
			m.inFlight.Dec()
			m.ObserveRequest(service, endpoint, Outcome(err), d)
		},
		OnReconciled: func(sagaID string, rec saga.Reconciliation) {
			m.IncReconciled(rec.State)
		},
		OnFallback: func(sagaID string, err error) {
			m.IncFallback()
		},
	}
}

// Outcome classifies err into an outcome label.
func Outcome(err error) string {
	var statusErr *saga.HTTPStatusError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, saga.ErrNotFound):
		return OutcomeNotFound
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusNotFound {
			return OutcomeNotFound
		}
		return OutcomeStatus + "_" + strconv.Itoa(statusErr.StatusCode/100) + "xx"
	case errors.Is(err, saga.ErrTransport):
		return OutcomeTransport
	case errors.Is(err, saga.ErrDecode):
		return OutcomeDecode
	}
	return OutcomeOther
}
