// Package metrics registers the Prometheus collectors for the book, feed and
// detector paths:
//
//	<ns>_book_updates_total{symbol,result}
//	<ns>_book_resyncs_total{symbol}
//	<ns>_book_best_price{symbol,side}
//	<ns>_feed_connected
//	<ns>_detections_total
//	<ns>_opportunities_total{path}
//	<ns>_opportunity_profit_bps
//	<ns>_detect_duration_seconds
//	go_* and process_* system metrics
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	reg *prometheus.Registry

	updates       *prometheus.CounterVec
	resyncs       *prometheus.CounterVec
	bestPrice     *prometheus.GaugeVec
	feedConnected prometheus.Gauge
	detections    prometheus.Counter
	opportunities *prometheus.CounterVec
	profitBps     prometheus.Histogram
	detectLatency prometheus.Histogram
}

// New builds and registers every collector under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "book_updates_total",
				Help:      "Level updates processed per pair, by result (applied, rejected, dropped)",
			},
			[]string{"symbol", "result"},
		),
		resyncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "book_resyncs_total",
				Help:      "Snapshots applied after a reset",
			},
			[]string{"symbol"},
		),
		bestPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "book_best_price",
				Help:      "Current best price per pair and side, in decimal units",
			},
			[]string{"symbol", "side"},
		),
		feedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_connected",
			Help:      "1 while the market-data websocket is connected",
		}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Detector evaluations",
		}),
		opportunities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "opportunities_total",
				Help:      "Opportunities at or above the profit threshold, by path",
			},
			[]string{"path"},
		),
		profitBps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "opportunity_profit_bps",
			Help:      "Profit of reported opportunities in basis points",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250},
		}),
		detectLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detect_duration_seconds",
			Help:      "Wall time of one detector evaluation",
			Buckets:   prometheus.ExponentialBuckets(25e-9, 2, 16),
		}),
	}

	m.reg.MustRegister(
		m.updates,
		m.resyncs,
		m.bestPrice,
		m.feedConnected,
		m.detections,
		m.opportunities,
		m.profitBps,
		m.detectLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for scraping in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Update results.
const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultDropped  = "dropped"
)

// ObserveUpdate counts one level update for symbol.
func (m *Metrics) ObserveUpdate(symbol, result string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(symbol, result).Inc()
}

// ObserveResync counts one snapshot rebuild.
func (m *Metrics) ObserveResync(symbol string) {
	if m == nil {
		return
	}
	m.resyncs.WithLabelValues(symbol).Inc()
}

// SetBest records the current best price; ok=false clears it to zero.
func (m *Metrics) SetBest(symbol string, side domain.Side, price float64, ok bool) {
	if m == nil {
		return
	}
	if !ok {
		price = 0
	}
	m.bestPrice.WithLabelValues(symbol, side.String()).Set(price)
}

// SetFeedConnected flips the connection gauge.
func (m *Metrics) SetFeedConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.feedConnected.Set(1)
	} else {
		m.feedConnected.Set(0)
	}
}

// ObserveDetection records one evaluation and its latency.
func (m *Metrics) ObserveDetection(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.detections.Inc()
	m.detectLatency.Observe(elapsed.Seconds())
}

// ObserveOpportunity records a reported opportunity.
func (m *Metrics) ObserveOpportunity(opp domain.Opportunity) {
	if m == nil {
		return
	}
	m.opportunities.WithLabelValues(opp.Path.String()).Inc()
	m.profitBps.Observe(opp.ProfitBps)
}
