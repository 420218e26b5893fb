package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/sequencer"
)

// defines prometheus metrics
var (
	promProposals = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_ordering_proposals_total",
		Help: "total number of proposals cut by the service",
	})

	promProposalSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sequencer_ordering_transactions_proposal",
		Help:    "number of transactions in the last proposal",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 20, 30, 50, 100, 200, 500},
	})

	promPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sequencer_ordering_pending_transactions",
		Help: "number of transactions waiting for the next cut",
	})

	promHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sequencer_ordering_next_height",
		Help: "height of the next proposal",
	})

	promFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sequencer_ordering_failures_total",
		Help: "total number of failures while cutting or publishing proposals",
	}, []string{"reason"})
)

const (
	failureProposal = "proposal"
	failureSave     = "save"
	failurePeers    = "peers"
	failurePublish  = "publish"
)

func init() {
	sequencer.PromCollectors = append(sequencer.PromCollectors, promProposals,
		promProposalSize, promPending, promHeight, promFailures)
}
