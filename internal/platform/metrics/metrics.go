package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	MintsTotal        *prometheus.CounterVec
	MintRejections    *prometheus.CounterVec
	MintedUnits       prometheus.Counter
	BurnedUnits       prometheus.Counter
	TransfersTotal    prometheus.Counter
	StakedUnits       prometheus.Gauge
	PositionsOpened   prometheus.Counter
	PositionsClosed   prometheus.Counter
	RewardsClaimed    prometheus.Counter
	SweepsTotal       prometheus.Counter
	SweptEntriesTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		MintsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_mints_total",
			Help: "Successful mints by path (first_time, recurring, direct, admin_grant).",
		}, []string{"path"}),
		MintRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_mint_rejections_total",
			Help: "Rejected mint attempts by error code.",
		}, []string{"code"}),
		MintedUnits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_minted_minor_units_total",
			Help: "Cumulative minted minor units, rewards included.",
		}),
		BurnedUnits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_burned_minor_units_total",
			Help: "Cumulative burned minor units across transfer burns and expiry sweeps.",
		}),
		TransfersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_transfers_total",
			Help: "Completed transfers through the transfer policy.",
		}),
		StakedUnits: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "aurum_staked_minor_units",
			Help: "Minor units currently held by the staking escrow.",
		}),
		PositionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_staking_positions_opened_total",
			Help: "Staking positions opened.",
		}),
		PositionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_staking_positions_closed_total",
			Help: "Staking positions closed by withdraw or emergency withdraw.",
		}),
		RewardsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_staking_rewards_claimed_total",
			Help: "Claim operations that minted a non-zero reward.",
		}),
		SweepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_expiry_sweeps_total",
			Help: "Sweep invocations, including no-op convergence checks.",
		}),
		SweptEntriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_expiry_swept_entries_total",
			Help: "Expiry entries burned and removed by sweeps.",
		}),
	}
}
