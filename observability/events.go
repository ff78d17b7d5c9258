package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	trades *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured launchpad events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			trades: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "agora",
				Subsystem: "events",
				Name:      "trades_total",
				Help:      "Count of executed curve trades segmented by asset and side.",
			}, []string{"asset", "side"}),
		}
		prometheus.MustRegister(eventRegistry.trades)
	})
	return eventRegistry
}

// RecordTrade increments the trade counter for the supplied asset and side.
func (m *eventMetrics) RecordTrade(asset, side string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToUpper(asset))
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	if side != "buy" && side != "sell" {
		side = "unknown"
	}
	m.trades.WithLabelValues(normalized, side).Inc()
}
