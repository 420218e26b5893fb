// Package gate implements the ordering gate.
//
// The gate is the client-facing side of the ordering layer. It forwards the
// transactions to the ordering service and releases the proposals it receives
// to the local subscribers, typically the consensus stage. Proposals are queued
// and released one per round: a new round starts when the ledger notifies the
// gate about a commit.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/sequencer"
	"go.dedis.ch/sequencer/core/ordering"
	"go.dedis.ch/sequencer/core/ordering/types"
	"go.dedis.ch/sequencer/core/txn"
)

// DefaultPropagateTimeout is the default maximum amount of time to forward a
// transaction.
const DefaultPropagateTimeout = 5 * time.Second

const watchSize = 10

// defines prometheus metrics
var (
	promReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_gate_proposals_received_total",
		Help: "total number of proposals received by the gate",
	})

	promQueue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sequencer_gate_queued_proposals",
		Help: "number of proposals waiting for the next round",
	})

	promPropagateFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_gate_propagate_failures_total",
		Help: "total number of transactions that could not be forwarded",
	})
)

func init() {
	sequencer.PromCollectors = append(sequencer.PromCollectors, promReceived,
		promQueue, promPropagateFailures)
}

// Gate is an ordering gate that releases one proposal per round.
//
// - implements ordering.Gate
type Gate struct {
	sync.Mutex

	logger    zerolog.Logger
	transport ordering.GateTransport
	timeout   time.Duration
	roundLock bool
	watcher   *watcher

	// emitMu is held while a proposal is notified so that the subscribers
	// receive the proposals in the order they are released.
	emitMu sync.Mutex

	queue    []types.Proposal
	inRound  bool
	lastSeen uint64
}

type template struct {
	logger    zerolog.Logger
	timeout   time.Duration
	roundLock bool
}

// Option is the type of option to set some fields of the gate.
type Option func(*template)

// WithoutRoundLock is an option to release the proposals as soon as they
// arrive, without waiting for the commits.
func WithoutRoundLock() Option {
	return func(tmpl *template) {
		tmpl.roundLock = false
	}
}

// WithPropagateTimeout is an option to set the maximum amount of time to
// forward a transaction.
func WithPropagateTimeout(d time.Duration) Option {
	return func(tmpl *template) {
		tmpl.timeout = d
	}
}

// WithLogger is an option to set the logger of the gate.
func WithLogger(logger zerolog.Logger) Option {
	return func(tmpl *template) {
		tmpl.logger = logger
	}
}

// NewGate creates a new gate that listens for proposals on the transport.
func NewGate(transport ordering.GateTransport, opts ...Option) *Gate {
	tmpl := template{
		logger:    sequencer.Logger.With().Str("component", "ordering-gate").Logger(),
		timeout:   DefaultPropagateTimeout,
		roundLock: true,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	g := &Gate{
		logger:    tmpl.logger,
		transport: transport,
		timeout:   tmpl.timeout,
		roundLock: tmpl.roundLock,
		watcher:   newWatcher(),
	}

	transport.SetProposalHandler(g)

	return g
}

// Propagate implements ordering.Gate. It forwards the transaction to the
// ordering service. Failures are logged and the transaction is not retried.
func (g *Gate) Propagate(tx txn.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	err := g.transport.PropagateTransaction(ctx, tx)
	if err != nil {
		g.logger.Warn().Err(err).Hex("tx", tx.GetID()).Msg("failed to propagate transaction")
		promPropagateFailures.Inc()
	}
}

// OnProposal implements ordering.ProposalHandler. It queues the proposal and
// releases it if no round is in progress.
func (g *Gate) OnProposal(p types.Proposal) {
	promReceived.Inc()

	g.Lock()

	g.logger.Debug().
		Uint64("height", p.GetHeight()).
		Int("size", p.Len()).
		Msg("proposal received")

	g.queue = append(g.queue, p)

	g.tryNextRound()
}

// OnCommit implements ordering.Gate. It ends the current round and releases
// the next proposal if any.
func (g *Gate) OnCommit(c ordering.Commit) {
	g.Lock()

	g.logger.Debug().Uint64("height", c.Height).Msg("commit received")

	g.inRound = false

	g.tryNextRound()
}

// ListenCommits calls OnCommit for every commit received on the channel until
// the context is done or the channel is closed.
func (g *Gate) ListenCommits(ctx context.Context, commits <-chan ordering.Commit) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-commits:
				if !ok {
					return
				}

				g.OnCommit(c)
			}
		}
	}()
}

// Watch implements ordering.Gate. It returns a channel populated with the
// proposals released by the gate. The channel is closed when the context is
// done.
func (g *Gate) Watch(ctx context.Context) <-chan types.Proposal {
	obs := &observer{
		ctx:    ctx,
		events: make(chan types.Proposal, watchSize),
	}

	g.watcher.add(obs)

	go func() {
		<-ctx.Done()
		g.watcher.remove(obs)
		close(obs.events)
	}()

	return obs.events
}

// Queued returns the number of proposals waiting for a round.
func (g *Gate) Queued() int {
	g.Lock()
	defer g.Unlock()

	return len(g.queue)
}

// tryNextRound releases the next proposal if no round is in progress. It must
// be called with the lock held and it releases it.
func (g *Gate) tryNextRound() {
	if len(g.queue) == 0 || (g.roundLock && g.inRound) {
		promQueue.Set(float64(len(g.queue)))
		g.Unlock()
		return
	}

	p := g.queue[0]
	g.queue = g.queue[1:]
	g.inRound = true

	if p.GetHeight() < g.lastSeen {
		g.logger.Warn().
			Uint64("height", p.GetHeight()).
			Uint64("last", g.lastSeen).
			Msg("proposal released out of order")
	}

	g.lastSeen = p.GetHeight()

	promQueue.Set(float64(len(g.queue)))

	g.emitMu.Lock()
	g.Unlock()

	g.watcher.notify(p)

	g.emitMu.Unlock()
}
