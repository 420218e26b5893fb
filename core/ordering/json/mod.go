// Package json defines the JSON messages for the ordering types.
package json

import (
	"encoding/json"
	"time"

	"go.dedis.ch/sequencer/core/ordering/types"
	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/serde"
	"golang.org/x/xerrors"
)

func init() {
	types.RegisterProposalFormat(serde.FormatJSON, proposalFormat{})
}

// ProposalJSON is the JSON message of a proposal.
type ProposalJSON struct {
	Height       uint64
	CreatedAt    int64
	Transactions []json.RawMessage
}

// ProposalFormat is the JSON format engine for proposals.
//
// - implements serde.FormatEngine
type proposalFormat struct{}

// Encode implements serde.FormatEngine. It returns the JSON data of the
// proposal if appropriate, otherwise it returns an error.
func (f proposalFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	p, ok := msg.(types.Proposal)
	if !ok {
		return nil, xerrors.Errorf("unsupported message '%T'", msg)
	}

	txs := p.GetTransactions()
	raws := make([]json.RawMessage, len(txs))

	for i, tx := range txs {
		data, err := tx.Serialize(ctx)
		if err != nil {
			return nil, xerrors.Errorf("failed to serialize tx: %v", err)
		}

		raws[i] = data
	}

	m := ProposalJSON{
		Height:       p.GetHeight(),
		CreatedAt:    p.GetCreatedAt().UnixNano(),
		Transactions: raws,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the proposal from the JSON
// data if appropriate, otherwise it returns an error.
func (f proposalFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := ProposalJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	factory := ctx.GetFactory(types.TxFactoryKey{})

	fac, ok := factory.(txn.Factory)
	if !ok {
		return nil, xerrors.Errorf("invalid tx factory '%T'", factory)
	}

	txs := make([]txn.Transaction, len(m.Transactions))

	for i, raw := range m.Transactions {
		txs[i], err = fac.TransactionOf(ctx, raw)
		if err != nil {
			return nil, xerrors.Errorf("failed to deserialize tx: %v", err)
		}
	}

	p, err := types.NewProposal(m.Height, txs, types.WithCreatedAt(time.Unix(0, m.CreatedAt)))
	if err != nil {
		return nil, xerrors.Errorf("failed to create proposal: %v", err)
	}

	return p, nil
}
