package json

import (
	"go.dedis.ch/sequencer/core/txn/basic"
	"go.dedis.ch/sequencer/crypto"
	"go.dedis.ch/sequencer/serde"
	"golang.org/x/xerrors"
)

func init() {
	basic.RegisterTransactionFormat(serde.FormatJSON, txFormat{})
}

// TransactionJSON is the JSON message of a transaction.
type TransactionJSON struct {
	Nonce   uint64
	Creator string
	Args    map[string][]byte
}

// TxFormat is the JSON format engine for transactions.
//
// - implements serde.FormatEngine
type txFormat struct {
	hashFactory crypto.HashFactory
}

// Encode implements serde.FormatEngine. It returns the JSON data of the
// provided transaction if appropriate, otherwise it returns an error.
func (f txFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	tx, ok := msg.(basic.Transaction)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	args := map[string][]byte{}
	for _, key := range tx.GetArgs() {
		args[key] = tx.GetArg(key)
	}

	m := TransactionJSON{
		Nonce:   tx.GetNonce(),
		Creator: tx.GetCreator(),
		Args:    args,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It returns the transaction from the
// JSON data if appropriate, otherwise it returns an error.
func (f txFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := TransactionJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	opts := make([]basic.TransactionOption, 0, len(m.Args)+2)
	opts = append(opts, basic.WithCreator(m.Creator))

	for key, value := range m.Args {
		opts = append(opts, basic.WithArg(key, value))
	}

	if f.hashFactory != nil {
		opts = append(opts, basic.WithHashFactory(f.hashFactory))
	}

	tx, err := basic.NewTransaction(m.Nonce, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to create tx: %v", err)
	}

	return tx, nil
}
