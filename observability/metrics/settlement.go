package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type SettlementMetrics struct {
	settlements  *prometheus.CounterVec
	refunds      prometheus.Counter
	withdrawals  prometheus.Counter
	feesAccrued  prometheus.Gauge
	vaultBalance prometheus.Gauge
}

var (
	settlementOnce     sync.Once
	settlementRegistry *SettlementMetrics
)

func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "settlement_payouts_total",
				Help: "Count of executed settlements by product and outcome.",
			}, []string{"product", "outcome"}),
			refunds: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_refunds_total",
				Help: "Count of refunded rooms.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_fee_withdrawals_total",
				Help: "Count of treasury fee withdrawals.",
			}),
			feesAccrued: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "settlement_fees_accrued",
				Help: "Protocol fees accrued and not yet withdrawn, in base token units.",
			}),
			vaultBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "settlement_vault_balance",
				Help: "Current settlement vault balance in base token units.",
			}),
		}
		prometheus.MustRegister(
			settlementRegistry.settlements,
			settlementRegistry.refunds,
			settlementRegistry.withdrawals,
			settlementRegistry.feesAccrued,
			settlementRegistry.vaultBalance,
		)
	})
	return settlementRegistry
}

func (m *SettlementMetrics) ObserveSettlement(product, outcome string) {
	if m == nil {
		return
	}
	if product == "" {
		product = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.settlements.WithLabelValues(product, outcome).Inc()
}

func (m *SettlementMetrics) IncRefund() {
	if m == nil {
		return
	}
	m.refunds.Inc()
}

func (m *SettlementMetrics) IncFeeWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *SettlementMetrics) SetFeesAccrued(amount *big.Int) {
	if m == nil {
		return
	}
	m.feesAccrued.Set(bigToFloat(amount))
}

func (m *SettlementMetrics) SetVaultBalance(amount *big.Int) {
	if m == nil {
		return
	}
	m.vaultBalance.Set(bigToFloat(amount))
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
