// Package serde defines the primitives to serialize and deserialize (serde)
// the messages exchanged between the nodes.
//
// A message implementation looks up the engine registered for the format of
// the context, which keeps the data model independent of the encoding.
package serde

import "io"

// Format is the identifier of an encoding format.
type Format string

const (
	// FormatJSON is the identifier of the JSON encoding.
	FormatJSON Format = "JSON"
)

// Message is the interface a data model must implement to be serialized.
type Message interface {
	// Serialize returns the bytes of the message according to the format of
	// the context.
	Serialize(ctx Context) ([]byte, error)
}

// Factory is the interface to implement to instantiate a message from its
// serialized form.
type Factory interface {
	// Deserialize returns the message of the data according to the format of
	// the context.
	Deserialize(ctx Context, data []byte) (Message, error)
}

// Fingerprinter is the interface implemented by a message that can write a
// deterministic binary representation of itself.
type Fingerprinter interface {
	// Fingerprint writes the deterministic representation of the message.
	Fingerprint(writer io.Writer) error
}

// FormatEngine is the interface of an encoding format for a given message.
type FormatEngine interface {
	// Encode returns the bytes of the message in the format of the engine.
	Encode(ctx Context, message Message) ([]byte, error)

	// Decode returns the message of the data in the format of the engine.
	Decode(ctx Context, data []byte) (Message, error)
}
