// Package types implements the messages produced by the ordering service.
package types

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/crypto"
	"go.dedis.ch/sequencer/serde"
	"go.dedis.ch/sequencer/serde/registry"
	"golang.org/x/xerrors"
)

var proposalFormats = registry.NewSimpleRegistry()

// RegisterProposalFormat registers the engine for the provided format.
func RegisterProposalFormat(f serde.Format, e serde.FormatEngine) {
	proposalFormats.Register(f, e)
}

// Digest defines the result of a fingerprint. It expects a digest of 256 bits.
type Digest [32]byte

// String returns a short hexadecimal representation of the digest.
func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:])[:8]
}

// Proposal is an ordered batch of transactions stamped with the height it has
// been created for. A proposal is immutable: the getters return copies.
//
// - implements serde.Message
// - implements serde.Fingerprinter
type Proposal struct {
	digest    Digest
	height    uint64
	createdAt time.Time
	txs       []txn.Transaction
}

type proposalTemplate struct {
	Proposal

	hashFactory crypto.HashFactory
}

// ProposalOption is the type of option to set some fields of a proposal.
type ProposalOption func(*proposalTemplate)

// WithCreatedAt is an option to set the creation time of the proposal.
func WithCreatedAt(t time.Time) ProposalOption {
	return func(tmpl *proposalTemplate) {
		tmpl.createdAt = t
	}
}

// WithHashFactory is an option to set the hash factory used to compute the
// digest.
func WithHashFactory(fac crypto.HashFactory) ProposalOption {
	return func(tmpl *proposalTemplate) {
		tmpl.hashFactory = fac
	}
}

// NewProposal creates a proposal for the height with a copy of the list of
// transactions. The creation time is the current time unless specified.
func NewProposal(height uint64, txs []txn.Transaction, opts ...ProposalOption) (Proposal, error) {
	tmpl := proposalTemplate{
		Proposal: Proposal{
			height:    height,
			createdAt: time.Now(),
			txs:       append([]txn.Transaction{}, txs...),
		},
		hashFactory: crypto.NewSha256Factory(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	h := tmpl.hashFactory.New()
	err := tmpl.Fingerprint(h)
	if err != nil {
		return tmpl.Proposal, xerrors.Errorf("fingerprint failed: %v", err)
	}

	copy(tmpl.digest[:], h.Sum(nil))

	return tmpl.Proposal, nil
}

// GetHash returns the digest of the proposal.
func (p Proposal) GetHash() Digest {
	return p.digest
}

// GetHeight returns the height the proposal has been created for.
func (p Proposal) GetHeight() uint64 {
	return p.height
}

// GetCreatedAt returns the creation time of the proposal.
func (p Proposal) GetCreatedAt() time.Time {
	return p.createdAt
}

// GetTransactions returns a copy of the ordered list of transactions.
func (p Proposal) GetTransactions() []txn.Transaction {
	return append([]txn.Transaction{}, p.txs...)
}

// Len returns the number of transactions in the proposal.
func (p Proposal) Len() int {
	return len(p.txs)
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic binary
// representation of the proposal made of the height, the creation time and the
// identifiers of the transactions in order.
func (p Proposal) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 16)
	binary.LittleEndian.PutUint64(buffer[:8], p.height)
	binary.LittleEndian.PutUint64(buffer[8:], uint64(p.createdAt.UnixNano()))

	_, err := w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write header: %v", err)
	}

	for _, tx := range p.txs {
		_, err = w.Write(tx.GetID())
		if err != nil {
			return xerrors.Errorf("couldn't write tx: %v", err)
		}
	}

	return nil
}

// Serialize implements serde.Message. It returns the serialized data of the
// proposal.
func (p Proposal) Serialize(ctx serde.Context) ([]byte, error) {
	format := proposalFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, p)
	if err != nil {
		return nil, xerrors.Errorf("encoding failed: %v", err)
	}

	return data, nil
}

// TxFactoryKey is the key of the transaction factory.
type TxFactoryKey struct{}

// ProposalFactory is a factory to deserialize proposals.
//
// - implements serde.Factory
type ProposalFactory struct {
	txFac txn.Factory
}

// NewProposalFactory creates a new factory that uses the transaction factory
// to deserialize the content of the proposals.
func NewProposalFactory(fac txn.Factory) ProposalFactory {
	return ProposalFactory{
		txFac: fac,
	}
}

// Deserialize implements serde.Factory. It populates the proposal from the data
// if appropriate, otherwise it returns an error.
func (f ProposalFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.ProposalOf(ctx, data)
}

// ProposalOf populates the proposal from the data if appropriate, otherwise it
// returns an error.
func (f ProposalFactory) ProposalOf(ctx serde.Context, data []byte) (Proposal, error) {
	format := proposalFormats.Get(ctx.GetFormat())

	ctx = serde.WithFactory(ctx, TxFactoryKey{}, f.txFac)

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return Proposal{}, xerrors.Errorf("decoding failed: %v", err)
	}

	p, ok := msg.(Proposal)
	if !ok {
		return Proposal{}, xerrors.Errorf("invalid proposal of type '%T'", msg)
	}

	return p, nil
}
