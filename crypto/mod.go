// Package crypto defines the cryptographic primitives used by the nodes to
// identify themselves and to fingerprint the messages.
package crypto

import (
	"encoding"
	"hash"
)

// HashFactory is an interface to produce a hash digest.
type HashFactory interface {
	New() hash.Hash
}

// PublicKey is the public identity of a participant.
type PublicKey interface {
	encoding.BinaryMarshaler
	encoding.TextMarshaler

	// Equal returns true when the other key is the same.
	Equal(other interface{}) bool

	// String returns a short representation of the key.
	String() string
}
