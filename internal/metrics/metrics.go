// Package metrics holds the server's Prometheus collectors. They register
// with the default registry and are scraped from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts served requests by route template, so /api/expenses/:id
	// is one series however many ids are requested.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_http_requests_total",
		Help: "HTTP requests served, by method, route and status code",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "procurement_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// DocumentTransitions counts committed lifecycle changes.
	DocumentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_document_transitions_total",
		Help: "Committed document status changes, by kind and target status",
	}, []string{"kind", "status"})

	DocumentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_documents_created_total",
		Help: "Documents created, by kind",
	}, []string{"kind"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "procurement_ws_clients",
		Help: "Connected websocket subscribers",
	})

	WSEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procurement_ws_events_dropped_total",
		Help: "Events dropped because the broadcast queue was full",
	})
)
