// Package service implements the ordering service.
//
// The service accumulates the transactions it receives in a pending batch and
// cuts a proposal either when the batch reaches the maximum size or when a
// timeout fires with a non-empty batch. Every proposal is stamped with the
// next height, which is durably saved before the proposal is published, so
// that a restarted node never reuses a height.
//
// Transactions, timeouts and queries are all pushed to a single channel that
// is consumed by one worker. Events are therefore processed in the order they
// are submitted, and the events that arrive during a cut wait for it to finish.
// The height is loaded once when the service is created. Two services sharing
// the same height ledger would race on it, which is not supported.
package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/sequencer"
	"go.dedis.ch/sequencer/core/ordering"
	"go.dedis.ch/sequencer/core/ordering/roster"
	"go.dedis.ch/sequencer/core/ordering/types"
	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/crypto"
	"golang.org/x/xerrors"
)

const (
	// DefaultMaxProposalSize is the default maximum number of transactions in a
	// proposal.
	DefaultMaxProposalSize = 10

	// DefaultPublishTimeout is the default maximum amount of time to wait for
	// the transport to publish a proposal.
	DefaultPublishTimeout = 5 * time.Second

	eventsSize = 100
)

type eventKind int

const (
	transactionEvent eventKind = iota
	timeoutEvent
	queryEvent
)

type state struct {
	next    uint64
	pending int
}

type event struct {
	kind  eventKind
	tx    txn.Transaction
	reply chan state
}

// Service is an ordering service that cuts proposals out of the transactions
// it receives.
//
// - implements ordering.Service
type Service struct {
	logger         zerolog.Logger
	ledger         ordering.HeightLedger
	peers          ordering.PeerQuery
	transport      ordering.ServiceTransport
	maxSize        int
	publishTimeout time.Duration
	clock          func() time.Time
	hashFactory    crypto.HashFactory
	ticker         *time.Ticker

	events    chan event
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Only accessed by the worker, or after it has stopped.
	next    uint64
	pending []txn.Transaction
}

type template struct {
	maxSize        int
	publishTimeout time.Duration
	timeout        time.Duration
	timeouts       <-chan time.Time
	logger         zerolog.Logger
	clock          func() time.Time
	hashFactory    crypto.HashFactory
}

// Option is the type of option to set some fields of the service.
type Option func(*template)

// WithMaxProposalSize is an option to set the maximum number of transactions in
// a proposal. The service cuts a proposal as soon as the pending batch reaches
// this size.
func WithMaxProposalSize(size int) Option {
	return func(tmpl *template) {
		tmpl.maxSize = size
	}
}

// WithTimeout is an option to cut a proposal periodically if the pending batch
// is not empty.
func WithTimeout(d time.Duration) Option {
	return func(tmpl *template) {
		tmpl.timeout = d
	}
}

// WithTimeoutSource is an option to set the channel that triggers the timeouts.
// It takes precedence over WithTimeout.
func WithTimeoutSource(ch <-chan time.Time) Option {
	return func(tmpl *template) {
		tmpl.timeouts = ch
	}
}

// WithPublishTimeout is an option to set the maximum amount of time to publish
// a proposal.
func WithPublishTimeout(d time.Duration) Option {
	return func(tmpl *template) {
		tmpl.publishTimeout = d
	}
}

// WithLogger is an option to set the logger of the service.
func WithLogger(logger zerolog.Logger) Option {
	return func(tmpl *template) {
		tmpl.logger = logger
	}
}

// WithClock is an option to set the function that returns the creation time of
// the proposals.
func WithClock(clock func() time.Time) Option {
	return func(tmpl *template) {
		tmpl.clock = clock
	}
}

// WithHashFactory is an option to set the hash factory used to compute the
// digest of the proposals.
func WithHashFactory(fac crypto.HashFactory) Option {
	return func(tmpl *template) {
		tmpl.hashFactory = fac
	}
}

// NewService creates a new ordering service. It loads the next height from the
// ledger and starts to listen for transactions on the transport. It returns an
// error if the height cannot be loaded.
func NewService(ledger ordering.HeightLedger, peers ordering.PeerQuery,
	transport ordering.ServiceTransport, opts ...Option) (*Service, error) {

	tmpl := template{
		maxSize:        DefaultMaxProposalSize,
		publishTimeout: DefaultPublishTimeout,
		logger:         sequencer.Logger.With().Str("component", "ordering-service").Logger(),
		clock:          time.Now,
		hashFactory:    crypto.NewSha256Factory(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	if tmpl.maxSize <= 0 {
		return nil, xerrors.Errorf("invalid max proposal size %d", tmpl.maxSize)
	}

	next, err := ledger.Load()
	if err != nil {
		return nil, xerrors.Errorf("failed to load height: %v", err)
	}

	s := &Service{
		logger:         tmpl.logger,
		ledger:         ledger,
		peers:          peers,
		transport:      transport,
		maxSize:        tmpl.maxSize,
		publishTimeout: tmpl.publishTimeout,
		clock:          tmpl.clock,
		hashFactory:    tmpl.hashFactory,
		events:         make(chan event, eventsSize),
		closing:        make(chan struct{}),
		done:           make(chan struct{}),
		next:           next,
		pending:        make([]txn.Transaction, 0, tmpl.maxSize),
	}

	timeouts := tmpl.timeouts
	if timeouts == nil && tmpl.timeout > 0 {
		s.ticker = time.NewTicker(tmpl.timeout)
		timeouts = s.ticker.C
	}

	promHeight.Set(float64(next))

	go s.work()

	if timeouts != nil {
		go s.forward(timeouts)
	}

	transport.SetTransactionHandler(s)

	s.logger.Info().
		Uint64("height", next).
		Int("max", s.maxSize).
		Msg("ordering service started")

	return s, nil
}

// OnTransaction implements ordering.TransactionHandler. It appends the
// transaction to the pending batch, and cuts a proposal if the batch is full.
func (s *Service) OnTransaction(tx txn.Transaction) {
	if !s.push(event{kind: transactionEvent, tx: tx}) {
		s.logger.Warn().Hex("tx", tx.GetID()).Msg("service closed, transaction dropped")
	}
}

// OnTimeout implements ordering.Service. It cuts the pending transactions into
// proposals if any, otherwise it does nothing.
func (s *Service) OnTimeout() {
	s.push(event{kind: timeoutEvent})
}

// NextHeight returns the height of the next proposal.
func (s *Service) NextHeight() uint64 {
	return s.query().next
}

// Pending returns the number of transactions waiting for the next cut.
func (s *Service) Pending() int {
	return s.query().pending
}

// Close implements ordering.Service. It stops the service and waits for the
// worker to finish. The pending transactions are dropped.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)

		if s.ticker != nil {
			s.ticker.Stop()
		}
	})

	<-s.done

	return nil
}

func (s *Service) push(evt event) bool {
	select {
	case <-s.closing:
		return false
	default:
	}

	select {
	case s.events <- evt:
		return true
	case <-s.closing:
		return false
	}
}

func (s *Service) query() state {
	reply := make(chan state, 1)

	if s.push(event{kind: queryEvent, reply: reply}) {
		select {
		case st := <-reply:
			return st
		case <-s.done:
		}
	}

	<-s.done

	return state{next: s.next, pending: len(s.pending)}
}

func (s *Service) forward(timeouts <-chan time.Time) {
	for {
		select {
		case <-s.closing:
			return
		case _, ok := <-timeouts:
			if !ok {
				return
			}

			s.OnTimeout()
		}
	}
}

func (s *Service) work() {
	defer close(s.done)

	for {
		select {
		case <-s.closing:
			s.logger.Info().Int("pending", len(s.pending)).Msg("ordering service stopped")
			return
		case evt := <-s.events:
			s.handle(evt)
		}
	}
}

func (s *Service) handle(evt event) {
	switch evt.kind {
	case transactionEvent:
		s.pending = append(s.pending, evt.tx)
		promPending.Set(float64(len(s.pending)))

		for len(s.pending) >= s.maxSize {
			if !s.cut("size") {
				break
			}
		}
	case timeoutEvent:
		for len(s.pending) > 0 {
			if !s.cut("timeout") {
				break
			}
		}
	case queryEvent:
		evt.reply <- state{next: s.next, pending: len(s.pending)}
	}
}

// cut creates a proposal out of the head of the pending batch and publishes it
// if the next height is successfully saved. The batch is left untouched
// otherwise. It returns true when the proposal has been created.
func (s *Service) cut(trigger string) bool {
	size := len(s.pending)
	if size > s.maxSize {
		size = s.maxSize
	}

	candidate := s.next

	logger := s.logger.With().
		Str("cut", xid.New().String()).
		Str("trigger", trigger).
		Uint64("height", candidate).
		Int("size", size).
		Logger()

	if candidate == math.MaxUint64 {
		logger.Error().Msg("height exhausted")
		promFailures.WithLabelValues(failureSave).Inc()
		return false
	}

	proposal, err := types.NewProposal(candidate, s.pending[:size],
		types.WithCreatedAt(s.clock()), types.WithHashFactory(s.hashFactory))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to create proposal")
		promFailures.WithLabelValues(failureProposal).Inc()
		return false
	}

	err = s.ledger.Save(candidate + 1)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to save height, batch retained")
		promFailures.WithLabelValues(failureSave).Inc()
		return false
	}

	s.pending = append(s.pending[:0], s.pending[size:]...)
	s.next = candidate + 1

	promProposals.Inc()
	promProposalSize.Observe(float64(size))
	promPending.Set(float64(len(s.pending)))
	promHeight.Set(float64(s.next))

	logger.Debug().Str("digest", proposal.GetHash().String()).Msg("proposal created")

	s.publish(logger, proposal)

	return true
}

func (s *Service) publish(logger zerolog.Logger, p types.Proposal) {
	peers, err := s.peers.CurrentPeers()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to get peers, proposal not published")
		promFailures.WithLabelValues(failurePeers).Inc()
		return
	}

	addrs := roster.Addresses(peers)

	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	err = s.transport.PublishProposal(ctx, p, addrs)
	if err != nil {
		logger.Warn().Err(err).Strs("peers", addrs).Msg("failed to publish proposal")
		promFailures.WithLabelValues(failurePublish).Inc()
		return
	}

	logger.Info().Int("peers", len(addrs)).Msg("proposal published")
}
