package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts terminal contract resolutions and reconciled
// purchases.
type SettlementMetrics struct {
	settlements *prometheus.CounterVec
	purchases   prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided
// registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contract_settlements_total",
		Help: "Settled contracts by outcome.",
	}, []string{"outcome"})
	purchases := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "purchase_reconciliations_total",
		Help: "Purchase receipts reconciled into wallet credits.",
	})
	reg.MustRegister(settlements, purchases)
	return &SettlementMetrics{
		settlements: settlements,
		purchases:   purchases,
	}
}

// IncSettlement increments the settlement counter for an outcome status.
func (s *SettlementMetrics) IncSettlement(outcome string) {
	if s == nil || s.settlements == nil {
		return
	}
	s.settlements.WithLabelValues(jobLabel(outcome)).Inc()
}

// IncPurchase increments the reconciled purchase counter.
func (s *SettlementMetrics) IncPurchase() {
	if s == nil || s.purchases == nil {
		return
	}
	s.purchases.Inc()
}
