// Package ed25519 implements the key material of the participants using the
// Edwards 25519 elliptic curve.
package ed25519

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/sequencer/crypto"
	"golang.org/x/xerrors"
)

// Algorithm is the name of the curve.
const Algorithm = "CURVE-ED25519"

var suite = suites.MustFind("Ed25519")

// PublicKey is the public key adapter to the Kyber Ed25519 public key.
//
// - implements crypto.PublicKey
type PublicKey struct {
	point kyber.Point
}

// NewPublicKey returns a new public key from the data.
func NewPublicKey(data []byte) (PublicKey, error) {
	point := suite.Point()
	err := point.UnmarshalBinary(data)
	if err != nil {
		return PublicKey{}, xerrors.Errorf("couldn't unmarshal point: %v", err)
	}

	pk := PublicKey{
		point: point,
	}

	return pk, nil
}

// NewPublicKeyFromHex returns a new public key from its hexadecimal encoding.
func NewPublicKeyFromHex(text string) (PublicKey, error) {
	data, err := hex.DecodeString(text)
	if err != nil {
		return PublicKey{}, xerrors.Errorf("couldn't decode hex: %v", err)
	}

	return NewPublicKey(data)
}

// NewPublicKeyFromPoint creates a new public key from an existing point.
func NewPublicKeyFromPoint(point kyber.Point) PublicKey {
	return PublicKey{
		point: point,
	}
}

// GetPoint returns the kyber point.
func (pk PublicKey) GetPoint() kyber.Point {
	return pk.point
}

// MarshalBinary implements encoding.BinaryMarshaler. It produces a slice of
// bytes representing the public key.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	if pk.point == nil {
		return nil, xerrors.New("missing point")
	}

	return pk.point.MarshalBinary()
}

// MarshalText implements encoding.TextMarshaler. It returns a text
// representation of the public key.
func (pk PublicKey) MarshalText() ([]byte, error) {
	buffer, err := pk.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return []byte(fmt.Sprintf("ed25519:%x", buffer)), nil
}

// Equal implements crypto.PublicKey. It returns true if the other public key
// is the same.
func (pk PublicKey) Equal(other interface{}) bool {
	pubkey, ok := other.(PublicKey)
	if !ok || pubkey.point == nil || pk.point == nil {
		return false
	}

	return pubkey.point.Equal(pk.point)
}

// String implements fmt.Stringer. It returns the prefix and the first 16
// characters of the hexadecimal representation of the point.
func (pk PublicKey) String() string {
	buffer, err := pk.MarshalText()
	if err != nil {
		return "ed25519:malformed_point"
	}

	return string(buffer)[:8+16]
}

// KeyPair is the private identity of a node.
type KeyPair struct {
	pair *key.Pair
}

// NewKeyPair returns a new random key pair.
func NewKeyPair() KeyPair {
	return KeyPair{
		pair: key.NewKeyPair(suite),
	}
}

// NewKeyPairFromBytes returns the key pair of the marshaled private key.
func NewKeyPairFromBytes(data []byte) (KeyPair, error) {
	scalar := suite.Scalar()
	err := scalar.UnmarshalBinary(data)
	if err != nil {
		return KeyPair{}, xerrors.Errorf("couldn't unmarshal scalar: %v", err)
	}

	pair := &key.Pair{
		Private: scalar,
		Public:  suite.Point().Mul(scalar, nil),
	}

	return KeyPair{pair: pair}, nil
}

// GetPublicKey returns the public key of the pair.
func (kp KeyPair) GetPublicKey() crypto.PublicKey {
	return PublicKey{point: kp.pair.Public}
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns the bytes of
// the private key.
func (kp KeyPair) MarshalBinary() ([]byte, error) {
	return kp.pair.Private.MarshalBinary()
}
