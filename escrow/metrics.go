package escrow

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments lifecycle outcomes. Nil Metrics on the Config disables
// instrumentation.
type Metrics struct {
	Submissions   *prometheus.CounterVec
	ConsensusRuns *prometheus.CounterVec
	DeviationPct  prometheus.Histogram
	RefundTiers   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_submissions_total",
				Help: "Ledger submissions by operation and outcome",
			},
			[]string{"op", "outcome"}, // outcome: confirmed, rejected, unconfirmed, noop
		),
		ConsensusRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_consensus_runs_total",
				Help: "Consensus computations by whether the threshold was met",
			},
			[]string{"reached"},
		),
		DeviationPct: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "verdict_consensus_deviation_pct",
				Help:    "Relative spread of oracle scores per consensus run",
				Buckets: []float64{1, 2.5, 5, 10, 15, 25, 50, 100},
			},
		),
		RefundTiers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_refund_tier_total",
				Help: "Resolutions by resulting refund percentage",
			},
			[]string{"refund_pct"},
		),
	}
}

func (m *Metrics) observeSubmission(op, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) observeConsensus(reached bool, deviationPct float64, refundPct uint8) {
	if m == nil {
		return
	}
	m.ConsensusRuns.WithLabelValues(strconv.FormatBool(reached)).Inc()
	m.DeviationPct.Observe(deviationPct)
	if reached {
		m.RefundTiers.WithLabelValues(strconv.Itoa(int(refundPct))).Inc()
	}
}
