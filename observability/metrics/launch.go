package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LaunchMetrics struct {
	marketsCreated prometheus.Counter
	graduations    *prometheus.CounterVec
	pauses         *prometheus.CounterVec
	raised         *prometheus.GaugeVec
	tradeFailures  *prometheus.CounterVec
}

var (
	launchOnce     sync.Once
	launchRegistry *LaunchMetrics
)

// Launch returns the lazily-initialised launchpad lifecycle metrics.
func Launch() *LaunchMetrics {
	launchOnce.Do(func() {
		launchRegistry = &LaunchMetrics{
			marketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "launch_markets_created_total",
				Help: "Count of markets formed through the quorum workflow.",
			}),
			graduations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launch_graduations_total",
				Help: "Count of market graduations by trigger.",
			}, []string{"trigger"}),
			pauses: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launch_pauses_total",
				Help: "Count of administrative pause actions by kind.",
			}, []string{"kind"}),
			raised: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "launch_market_raised",
				Help: "Current raised reserve per market, in native value units.",
			}, []string{"asset"}),
			tradeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launch_trade_failures_total",
				Help: "Count of rejected trades by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			launchRegistry.marketsCreated,
			launchRegistry.graduations,
			launchRegistry.pauses,
			launchRegistry.raised,
			launchRegistry.tradeFailures,
		)
	})
	return launchRegistry
}

// RecordMarketCreated increments the formation counter.
func (m *LaunchMetrics) RecordMarketCreated() {
	if m == nil {
		return
	}
	m.marketsCreated.Inc()
}

// RecordGraduation counts a graduation; trigger is "target" or "forced".
func (m *LaunchMetrics) RecordGraduation(trigger string) {
	if m == nil {
		return
	}
	if trigger != "target" && trigger != "forced" {
		trigger = "unknown"
	}
	m.graduations.WithLabelValues(trigger).Inc()
}

// RecordPause counts an administrative pause action.
func (m *LaunchMetrics) RecordPause(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.pauses.WithLabelValues(kind).Inc()
}

// SetRaised publishes the raised reserve for a market. Values beyond float64
// precision are clamped; the gauge is advisory, the ledger is authoritative.
func (m *LaunchMetrics) SetRaised(asset string, raised *big.Int) {
	if m == nil || raised == nil {
		return
	}
	value, _ := new(big.Float).SetInt(raised).Float64()
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return
	}
	m.raised.WithLabelValues(asset).Set(value)
}

// RecordTradeFailure counts a rejected trade by reason label.
func (m *LaunchMetrics) RecordTradeFailure(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.tradeFailures.WithLabelValues(reason).Inc()
}
