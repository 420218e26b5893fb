// Package ordering defines the interfaces of the ordering layer of a ledger
// node. The high-level purpose of the layer is to group the transactions
// submitted by clients into bounded batches, stamped with a strictly
// increasing height, for a downstream agreement stage.
//
// The layer is made of two sides. The service accumulates transactions and
// cuts proposals either when the batch is full or when a timeout fires. The
// gate is the client-facing side: it forwards transactions to the service and
// hands the proposals it receives over to the local subscribers.
//
// The ordering layer only produces candidate orderings. It neither validates
// transactions nor decides which proposal is committed.
package ordering

import (
	"context"

	"go.dedis.ch/sequencer/core/ordering/types"
	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/crypto"
)

// Peer is a participant of the ledger that receives the proposals.
type Peer struct {
	Address   string
	PublicKey crypto.PublicKey
}

// PeerQuery provides the set of peers currently known by the ledger.
type PeerQuery interface {
	// CurrentPeers returns the peers at the time of the call. The result must
	// not be cached by the caller as the membership can change at any time.
	CurrentPeers() ([]Peer, error)
}

// HeightLedger is the persistent storage of the next height to use for a
// proposal.
type HeightLedger interface {
	// Load returns the stored height. A fresh ledger returns zero.
	Load() (uint64, error)

	// Save durably stores the height and returns nil only when the value will
	// survive a restart.
	Save(height uint64) error
}

// TransactionHandler is the receiver of the transactions coming from the
// network.
type TransactionHandler interface {
	OnTransaction(tx txn.Transaction)
}

// ProposalHandler is the receiver of the proposals coming from the network.
type ProposalHandler interface {
	OnProposal(p types.Proposal)
}

// ServiceTransport is the network abstraction used by the service to receive
// transactions and to publish proposals. Delivery is best-effort.
type ServiceTransport interface {
	// SetTransactionHandler sets the receiver of the incoming transactions.
	SetTransactionHandler(h TransactionHandler)

	// PublishProposal sends the proposal to the list of addresses.
	PublishProposal(ctx context.Context, p types.Proposal, addrs []string) error
}

// GateTransport is the network abstraction used by the gate to forward
// transactions and to receive proposals. Delivery is best-effort.
type GateTransport interface {
	// SetProposalHandler sets the receiver of the incoming proposals.
	SetProposalHandler(h ProposalHandler)

	// PropagateTransaction sends the transaction to the ordering service.
	PropagateTransaction(ctx context.Context, tx txn.Transaction) error
}

// Commit is the notification that the ledger has committed a block at the
// given height.
type Commit struct {
	Height uint64
}

// Service is the interface of an ordering service.
type Service interface {
	TransactionHandler

	// OnTimeout cuts a proposal out of the pending transactions if any.
	OnTimeout()

	// Close stops the service.
	Close() error
}

// Gate is the interface of an ordering gate.
type Gate interface {
	ProposalHandler

	// Propagate forwards the transaction to the ordering service. It never
	// fails from the point of view of the caller.
	Propagate(tx txn.Transaction)

	// OnCommit notifies the gate that the ledger has advanced.
	OnCommit(c Commit)

	// Watch returns a channel populated with the proposals released by the
	// gate. The channel is closed when the context is done.
	Watch(ctx context.Context) <-chan types.Proposal
}
