package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics uses a registry per server so several servers (and tests) can
// live in one process.
type metrics struct {
	registry *prometheus.Registry
	queries  *prometheus.CounterVec
	loads    *prometheus.CounterVec
	records  prometheus.Gauge
	clients  prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pandata_queries_total",
			Help: "Collection queries served, by operation.",
		}, []string{"op"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pandata_reloads_total",
			Help: "Reloads of the source file, by result.",
		}, []string{"result"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pandata_records",
			Help: "Records currently held.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pandata_websocket_clients",
			Help: "Connected WebSocket clients.",
		}),
	}

	m.registry.MustRegister(
		m.queries,
		m.loads,
		m.records,
		m.clients,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
