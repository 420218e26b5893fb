// Package txn defines the abstraction of transactions.
//
// A transaction is an opaque unit of work submitted by a client. It is uniquely
// identifiable via a digest and it carries the identity of its creator and a
// nonce that acts as the creator's sequence number. The ordering layer never
// looks inside a transaction: it only moves it around and batches it.
package txn

import (
	"go.dedis.ch/sequencer/serde"
)

// Transaction is an immutable unit of work ordered by the sequencer.
type Transaction interface {
	serde.Message
	serde.Fingerprinter

	// GetID returns the unique identifier for the transaction.
	GetID() []byte

	// GetNonce returns the nonce of the transaction which corresponds to the
	// sequence number of the creator.
	GetNonce() uint64

	// GetCreator returns the identifier of the account that created the
	// transaction.
	GetCreator() string

	// GetArg is a getter for the arguments of the transaction.
	GetArg(key string) []byte
}

// Factory is the definition of a factory to deserialize transaction
// messages.
type Factory interface {
	serde.Factory

	TransactionOf(serde.Context, []byte) (Transaction, error)
}

// Arg is a generic argument that can be stored in a transaction.
type Arg struct {
	Key   string
	Value []byte
}
