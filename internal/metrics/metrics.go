package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ammPool/internal/model"
)

// Metrics holds the engine collectors.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SwapVolume        *prometheus.CounterVec
	PoolReserves      *prometheus.GaugeVec
	PoolShares        *prometheus.GaugeVec
}

// New registers the collectors with reg. A nil reg registers with a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amm",
				Name:      "operations_total",
				Help:      "Pool operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "amm",
				Name:      "operation_duration_seconds",
				Help:      "Pool operation latency including asset transfers",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		SwapVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amm",
				Name:      "swap_volume_total",
				Help:      "Swapped input amount in base units",
			},
			[]string{"asset_in"},
		),
		PoolReserves: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "amm",
				Name:      "pool_reserve",
				Help:      "Pool reserve in base units",
			},
			[]string{"pool", "asset"},
		),
		PoolShares: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "amm",
				Name:      "pool_liquidity_shares",
				Help:      "Outstanding liquidity shares",
			},
			[]string{"pool"},
		),
	}
}

// ObserveOperation records one finished operation. outcome is the error kind, or "ok".
func (m *Metrics) ObserveOperation(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := model.ErrorKind(err)
	if outcome == "" {
		outcome = "ok"
	}
	m.OperationsTotal.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// ObserveSwap adds amountIn to the swap volume of assetIn.
func (m *Metrics) ObserveSwap(assetIn string, amountIn *big.Int) {
	if m == nil {
		return
	}
	m.SwapVolume.WithLabelValues(assetIn).Add(toFloat(amountIn))
}

// SetPool publishes the reserves and shares of one pool.
func (m *Metrics) SetPool(key model.PairKey, pool model.Pool) {
	if m == nil {
		return
	}
	label := key.String()
	m.PoolReserves.WithLabelValues(label, key.Asset0.Hex()).Set(toFloat(pool.Reserve0))
	m.PoolReserves.WithLabelValues(label, key.Asset1.Hex()).Set(toFloat(pool.Reserve1))
	m.PoolShares.WithLabelValues(label).Set(toFloat(pool.TotalShares))
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
