package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for one engine instance.
// It is injected rather than registered globally so tests and multiple
// engines can use isolated registries.
type Metrics struct {
	decisionsTotal *prometheus.CounterVec
	fillsTotal     *prometheus.CounterVec
	fillNotional   *prometheus.HistogramVec
	currentPrice   *prometheus.GaugeVec
	equity         prometheus.Gauge
	breakerState   *prometheus.GaugeVec
}

// NewMetrics creates and registers the engine metrics. A nil registerer
// falls back to the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecore_risk_decisions_total",
				Help: "Risk admission decisions by outcome and reason",
			},
			[]string{"outcome", "reason"},
		),
		fillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecore_fills_total",
				Help: "Order fills by symbol, side and status",
			},
			[]string{"symbol", "side", "status"},
		),
		fillNotional: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecore_fill_notional",
				Help:    "Distribution of fill notionals",
				Buckets: prometheus.ExponentialBuckets(10, 10, 7),
			},
			[]string{"symbol"},
		),
		currentPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradecore_current_price",
				Help: "Last observed price per symbol",
			},
			[]string{"symbol"},
		),
		equity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradecore_equity",
				Help: "Current portfolio equity",
			},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradecore_breaker_state",
				Help: "Circuit breaker state per scope (0=armed, 1=triggered)",
			},
			[]string{"scope"},
		),
	}

	reg.MustRegister(
		m.decisionsTotal,
		m.fillsTotal,
		m.fillNotional,
		m.currentPrice,
		m.equity,
		m.breakerState,
	)

	return m
}

// RecordDecision records one risk admission outcome.
func (m *Metrics) RecordDecision(outcome, reason string) {
	m.decisionsTotal.WithLabelValues(outcome, reason).Inc()
}

// RecordFill records an executed or rejected fill.
func (m *Metrics) RecordFill(symbol, side, status string, notional float64) {
	m.fillsTotal.WithLabelValues(symbol, side, status).Inc()
	if notional > 0 {
		m.fillNotional.WithLabelValues(symbol).Observe(notional)
	}
}

// UpdatePrice updates the last observed price for a symbol.
func (m *Metrics) UpdatePrice(symbol string, price float64) {
	m.currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateEquity updates the equity gauge.
func (m *Metrics) UpdateEquity(equity float64) {
	m.equity.Set(equity)
}

// UpdateBreakerState updates the breaker gauge for a scope. The scope
// is a strategy name or "global".
func (m *Metrics) UpdateBreakerState(scope string, triggered bool) {
	v := 0.0
	if triggered {
		v = 1.0
	}
	m.breakerState.WithLabelValues(scope).Set(v)
}

// Handler returns the Prometheus scrape handler for the default
// registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
