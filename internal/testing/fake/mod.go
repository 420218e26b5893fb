// Package fake provides fake implementations for interfaces commonly used in
// the unit tests. The bad variants return an error when appropriate so that
// the error paths can be tested.
package fake

import (
	"encoding/json"
	"fmt"
	"hash"

	"go.dedis.ch/sequencer/serde"
	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// Err returns the expected error message of a fake error prefixed with the
// message.
func Err(msg string) string {
	return fmt.Sprintf("%s: %v", msg, fakeErr)
}

// GetError returns the fake error.
func GetError() error {
	return fakeErr
}

// Message is a fake implementation of a serde message.
//
// - implements serde.Message
type Message struct {
	Digest []byte
}

// Serialize implements serde.Message. It returns a constant JSON object.
func (m Message) Serialize(serde.Context) ([]byte, error) {
	return []byte("{}"), nil
}

// Format is a fake format engine that encodes and decodes fake messages.
//
// - implements serde.FormatEngine
type Format struct {
	Msg serde.Message
	err error
}

// NewBadFormat returns a format engine that always returns an error.
func NewBadFormat() Format {
	return Format{err: fakeErr}
}

// Encode implements serde.FormatEngine. It returns a constant payload, or an
// error if the format is bad.
func (f Format) Encode(serde.Context, serde.Message) ([]byte, error) {
	return []byte("fake format"), f.err
}

// Decode implements serde.FormatEngine. It returns the message of the format,
// or an error if the format is bad.
func (f Format) Decode(serde.Context, []byte) (serde.Message, error) {
	return f.Msg, f.err
}

// ContextEngine is a fake context engine using the JSON encoding, or returning
// an error when it is bad.
//
// - implements serde.ContextEngine
type contextEngine struct {
	format serde.Format
	err    error
}

// GoodFormat is the format of a fake engine that succeeds.
const GoodFormat = serde.Format("FAKE")

// BadFormat is the format of a fake engine that fails.
const BadFormat = serde.Format("BAD_FAKE")

// NewContext returns a JSON context that does not depend on the registered
// formats.
func NewContext() serde.Context {
	return serde.NewContext(contextEngine{format: serde.FormatJSON})
}

// NewContextWithFormat returns a JSON context that reports the given format so
// that the registries select the engine registered for it.
func NewContextWithFormat(f serde.Format) serde.Context {
	return serde.NewContext(contextEngine{format: f})
}

// NewBadContext returns a context that fails to marshal and unmarshal.
func NewBadContext() serde.Context {
	return serde.NewContext(contextEngine{format: serde.FormatJSON, err: fakeErr})
}

// GetFormat implements serde.ContextEngine. It returns the format of the
// engine.
func (e contextEngine) GetFormat() serde.Format {
	return e.format
}

// Marshal implements serde.ContextEngine.
func (e contextEngine) Marshal(m interface{}) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}

	return json.Marshal(m)
}

// Unmarshal implements serde.ContextEngine.
func (e contextEngine) Unmarshal(data []byte, m interface{}) error {
	if e.err != nil {
		return e.err
	}

	return json.Unmarshal(data, m)
}

// Hash is a fake implementation of a hash that fails to write.
//
// - implements hash.Hash
type Hash struct {
	hash.Hash
	delay int
	err   error
}

// NewBadHash returns a hash that fails at the first write.
func NewBadHash() *Hash {
	return &Hash{err: fakeErr}
}

// NewBadHashWithDelay returns a hash that fails after the given number of
// successful writes.
func NewBadHashWithDelay(delay int) *Hash {
	return &Hash{err: fakeErr, delay: delay}
}

// Write implements io.Writer.
func (h *Hash) Write(data []byte) (int, error) {
	if h.delay > 0 {
		h.delay--
		return len(data), nil
	}

	return 0, h.err
}

// Sum implements hash.Hash.
func (h *Hash) Sum([]byte) []byte {
	return []byte{}
}

// HashFactory is a fake implementation of a hash factory.
//
// - implements crypto.HashFactory
type HashFactory struct {
	hash *Hash
}

// NewHashFactory returns a fake hash factory that returns the given hash.
func NewHashFactory(h *Hash) HashFactory {
	return HashFactory{hash: h}
}

// New implements crypto.HashFactory.
func (f HashFactory) New() hash.Hash {
	return f.hash
}
