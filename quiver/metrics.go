package quiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refineRounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consensus_refine_rounds_total",
		Help: "Refinement rounds run.",
	})
	appliedMutations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consensus_refine_applied_mutations_total",
		Help: "Mutations applied to consensus templates.",
	})
	alphaBetaMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consensus_alpha_beta_mismatches_total",
		Help: "Forward/backward fills that still disagreed after the flip-flop limit.",
	})
	inactiveReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consensus_inactive_reads_total",
		Help: "Reads excluded from scoring, by reason.",
	}, []string{"reason"})
	fillFlipFlops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "consensus_fill_flipflops",
		Help:    "Extra forward/backward passes per alpha-beta fill.",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7},
	})
)
