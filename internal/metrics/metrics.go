// Package metrics defines the prometheus instruments every service
// binary registers at startup: orders processed, trades produced,
// per-market update_id, snapshot writes, stream-append latency.
// Grounded on VictorVVedtion-perp-dex/metrics/prometheus.go's
// Collector (CounterVec/GaugeVec/HistogramVec construction and a
// MustRegister-on-boot pattern), adapted to a non-singleton
// *Collector bound to its own prometheus.Registry rather than the
// global default registry, so tests can create an isolated one per
// case. The HTTP /metrics mount itself is left to the (out-of-scope)
// HTTP surface; this package only owns the registry and instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every instrument this repo's services emit.
type Collector struct {
	Registry *prometheus.Registry

	OrdersProcessed     *prometheus.CounterVec
	OrdersRejected      *prometheus.CounterVec
	TradesTotal         *prometheus.CounterVec
	MarketUpdateID      *prometheus.GaugeVec
	SnapshotWritesTotal prometheus.Counter
	SnapshotWriteErrors prometheus.Counter
	StreamAppendLatency *prometheus.HistogramVec
	StreamLag           *prometheus.GaugeVec
}

// New builds a Collector and registers every instrument against a
// fresh registry, so callers (and tests) never collide with the
// process-global default registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{Registry: reg}

	c.OrdersProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "predictex",
			Subsystem: "orders",
			Name:      "processed_total",
			Help:      "Orders accepted by the matching engine, by market and side.",
		},
		[]string{"event_id", "market_id", "side"},
	)

	c.OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "predictex",
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Orders rejected by the matching engine, by reason.",
		},
		[]string{"event_id", "market_id", "reason"},
	)

	c.TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "predictex",
			Subsystem: "trades",
			Name:      "total",
			Help:      "Trades produced by matching, by market.",
		},
		[]string{"event_id", "market_id"},
	)

	c.MarketUpdateID = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "predictex",
			Subsystem: "market",
			Name:      "update_id",
			Help:      "Latest update_id applied to a market's order books.",
		},
		[]string{"event_id", "market_id"},
	)

	c.SnapshotWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "predictex",
			Subsystem: "snapshot",
			Name:      "writes_total",
			Help:      "Snapshot files written to disk.",
		},
	)

	c.SnapshotWriteErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "predictex",
			Subsystem: "snapshot",
			Name:      "write_errors_total",
			Help:      "Snapshot writes that failed.",
		},
	)

	c.StreamAppendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "predictex",
			Subsystem: "stream",
			Name:      "append_latency_seconds",
			Help:      "Latency of a single XADD to a Redis Stream.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stream"},
	)

	c.StreamLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "predictex",
			Subsystem: "stream",
			Name:      "consumer_lag",
			Help:      "Entries a consumer has not yet processed on a stream.",
		},
		[]string{"stream", "consumer"},
	)

	reg.MustRegister(
		c.OrdersProcessed,
		c.OrdersRejected,
		c.TradesTotal,
		c.MarketUpdateID,
		c.SnapshotWritesTotal,
		c.SnapshotWriteErrors,
		c.StreamAppendLatency,
		c.StreamLag,
	)

	return c
}
