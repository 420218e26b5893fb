// Package basic implements a simple transaction made of a creator, a nonce and
// a set of arguments. The identifier is the SHA256 digest of its deterministic
// fingerprint.
package basic

import (
	"encoding/binary"
	"io"
	"sort"

	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/crypto"
	"go.dedis.ch/sequencer/serde"
	"go.dedis.ch/sequencer/serde/registry"
	"golang.org/x/xerrors"
)

var txFormats = registry.NewSimpleRegistry()

// RegisterTransactionFormat registers the engine for the provided format.
func RegisterTransactionFormat(f serde.Format, e serde.FormatEngine) {
	txFormats.Register(f, e)
}

// Transaction is a transaction created by an account.
//
// - implements txn.Transaction
type Transaction struct {
	nonce   uint64
	creator string
	args    map[string][]byte
	hash    []byte
}

type template struct {
	Transaction

	hashFactory crypto.HashFactory
}

// TransactionOption is the type of options to create a transaction.
type TransactionOption func(*template)

// WithCreator is an option to set the account that created the transaction.
func WithCreator(creator string) TransactionOption {
	return func(tmpl *template) {
		tmpl.creator = creator
	}
}

// WithArg is an option to set an argument with the key and the value.
func WithArg(key string, value []byte) TransactionOption {
	return func(tmpl *template) {
		tmpl.args[key] = value
	}
}

// WithHashFactory is an option to set a different hash factory when creating a
// transaction.
func WithHashFactory(f crypto.HashFactory) TransactionOption {
	return func(tmpl *template) {
		tmpl.hashFactory = f
	}
}

// NewTransaction creates a new transaction with the provided nonce.
func NewTransaction(nonce uint64, opts ...TransactionOption) (Transaction, error) {
	tmpl := template{
		Transaction: Transaction{
			nonce: nonce,
			args:  make(map[string][]byte),
		},
		hashFactory: crypto.NewSha256Factory(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	h := tmpl.hashFactory.New()
	err := tmpl.Fingerprint(h)
	if err != nil {
		return tmpl.Transaction, xerrors.Errorf("couldn't fingerprint tx: %v", err)
	}

	tmpl.hash = h.Sum(nil)

	return tmpl.Transaction, nil
}

// GetID implements txn.Transaction. It returns the ID of the transaction.
func (t Transaction) GetID() []byte {
	return append([]byte{}, t.hash...)
}

// GetNonce implements txn.Transaction. It returns the nonce of the
// transaction.
func (t Transaction) GetNonce() uint64 {
	return t.nonce
}

// GetCreator implements txn.Transaction. It returns the account that created
// the transaction.
func (t Transaction) GetCreator() string {
	return t.creator
}

// GetArgs returns the sorted list of argument keys.
func (t Transaction) GetArgs() []string {
	args := make([]string, 0, len(t.args))
	for key := range t.args {
		args = append(args, key)
	}

	sort.Strings(args)

	return args
}

// GetArg implements txn.Transaction. It returns the value of the argument if it
// is set, otherwise nil.
func (t Transaction) GetArg(key string) []byte {
	return t.args[key]
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic binary
// representation of the transaction: the nonce, the creator and the arguments
// sorted by key. Every variable-length field is prefixed by its length.
func (t Transaction) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, t.nonce)

	_, err := w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write nonce: %v", err)
	}

	err = writeField(w, []byte(t.creator))
	if err != nil {
		return xerrors.Errorf("couldn't write creator: %v", err)
	}

	for _, key := range t.GetArgs() {
		err = writeField(w, []byte(key))
		if err == nil {
			err = writeField(w, t.args[key])
		}

		if err != nil {
			return xerrors.Errorf("couldn't write arg: %v", err)
		}
	}

	return nil
}

func writeField(w io.Writer, data []byte) error {
	field := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint64(field, uint64(len(data)))
	copy(field[8:], data)

	_, err := w.Write(field)

	return err
}

// Serialize implements serde.Message. It returns the serialized data of the
// transaction.
func (t Transaction) Serialize(ctx serde.Context) ([]byte, error) {
	format := txFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, t)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode: %v", err)
	}

	return data, nil
}

// TransactionFactory is a factory to deserialize transactions.
//
// - implements txn.Factory
type TransactionFactory struct{}

// NewTransactionFactory returns a new factory.
func NewTransactionFactory() TransactionFactory {
	return TransactionFactory{}
}

// Deserialize implements serde.Factory. It populates the transaction from the
// data if appropriate, otherwise it returns an error.
func (f TransactionFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.TransactionOf(ctx, data)
}

// TransactionOf implements txn.Factory. It populates the transaction from the
// data if appropriate, otherwise it returns an error.
func (f TransactionFactory) TransactionOf(ctx serde.Context, data []byte) (txn.Transaction, error) {
	format := txFormats.Get(ctx.GetFormat())

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode: %v", err)
	}

	tx, ok := msg.(Transaction)
	if !ok {
		return nil, xerrors.Errorf("invalid transaction of type '%T'", msg)
	}

	return tx, nil
}

// Manager creates the transactions of a single creator and keeps track of the
// nonce.
type Manager struct {
	creator string
	nonce   uint64
}

// NewManager creates a new manager for the creator starting at the nonce.
func NewManager(creator string, nonce uint64) *Manager {
	return &Manager{
		creator: creator,
		nonce:   nonce,
	}
}

// Make creates a transaction populated with the arguments and increments the
// nonce.
func (mgr *Manager) Make(args ...txn.Arg) (txn.Transaction, error) {
	opts := make([]TransactionOption, 0, len(args)+1)
	opts = append(opts, WithCreator(mgr.creator))

	for _, arg := range args {
		opts = append(opts, WithArg(arg.Key, arg.Value))
	}

	tx, err := NewTransaction(mgr.nonce, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to create tx: %v", err)
	}

	mgr.nonce++

	return tx, nil
}
