// Package metrics wires Prometheus counters/histograms around the
// matching engine and market controller: orders placed, fills emitted,
// orderbook-full rejections, and match iterations consumed.
//
// Grounded on abdoElHodaky-tradSys's arbitrage component, which
// instruments trade execution with github.com/prometheus/client_golang
// counters in the same style reused here.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of counters/histograms a Controller reports to.
type Metrics struct {
	OrdersPlaced      *prometheus.CounterVec
	OrdersCancelled   *prometheus.CounterVec
	FillsEmitted      *prometheus.CounterVec
	OrderbookFull     *prometheus.CounterVec
	MatchIterations   prometheus.Histogram
	CollateralLocked  *prometheus.GaugeVec
}

// New registers and returns a fresh Metrics set against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duskbook",
			Name:      "orders_placed_total",
			Help:      "Orders accepted by place_order, by market and side.",
		}, []string{"market", "side"}),
		OrdersCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duskbook",
			Name:      "orders_cancelled_total",
			Help:      "Orders removed by cancel_order, by market.",
		}, []string{"market"}),
		FillsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duskbook",
			Name:      "fills_emitted_total",
			Help:      "Fills produced by the matching engine, by market.",
		}, []string{"market"}),
		OrderbookFull: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duskbook",
			Name:      "orderbook_full_total",
			Help:      "place_order rejections due to a saturated slab, by market.",
		}, []string{"market"}),
		MatchIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "duskbook",
			Name:      "match_iterations",
			Help:      "Iterations consumed per match_orders call.",
			Buckets:   prometheus.LinearBuckets(1, 8, 16),
		}),
		CollateralLocked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "duskbook",
			Name:      "collateral_locked",
			Help:      "Locked collateral by market and asset leg (base/quote).",
		}, []string{"market", "leg"}),
	}
	reg.MustRegister(m.OrdersPlaced, m.OrdersCancelled, m.FillsEmitted, m.OrderbookFull, m.MatchIterations, m.CollateralLocked)
	return m
}
