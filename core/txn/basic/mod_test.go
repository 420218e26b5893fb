package basic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/internal/testing/fake"
	"go.dedis.ch/sequencer/serde"
)

func init() {
	RegisterTransactionFormat(fake.GoodFormat, fake.Format{Msg: Transaction{}})
	RegisterTransactionFormat(fake.BadFormat, fake.NewBadFormat())
	RegisterTransactionFormat(serde.Format("BAD_TYPE"), fake.Format{Msg: fake.Message{}})
}

func TestTransaction_New(t *testing.T) {
	tx, err := NewTransaction(1)
	require.NoError(t, err)
	require.Len(t, tx.GetID(), 32)
	require.Equal(t, uint64(1), tx.GetNonce())
	require.Empty(t, tx.GetCreator())

	tx, err = NewTransaction(2, WithCreator("alice"), WithArg("A", []byte{1}))
	require.NoError(t, err)
	require.Equal(t, "alice", tx.GetCreator())
	require.Equal(t, []byte{1}, tx.GetArg("A"))
	require.Nil(t, tx.GetArg("B"))

	_, err = NewTransaction(0, WithHashFactory(fake.NewHashFactory(fake.NewBadHash())))
	require.EqualError(t, err, fake.Err("couldn't fingerprint tx: couldn't write nonce"))
}

func TestTransaction_GetID(t *testing.T) {
	tx1, err := NewTransaction(1, WithCreator("alice"))
	require.NoError(t, err)

	tx2, err := NewTransaction(1, WithCreator("bob"))
	require.NoError(t, err)
	require.NotEqual(t, tx1.GetID(), tx2.GetID())

	tx3, err := NewTransaction(1, WithCreator("alice"))
	require.NoError(t, err)
	require.Equal(t, tx1.GetID(), tx3.GetID())

	id := tx1.GetID()
	id[0] ^= 0xff
	require.NotEqual(t, id, tx1.GetID())
}

func TestTransaction_GetArgs(t *testing.T) {
	tx, err := NewTransaction(0, WithArg("B", nil), WithArg("A", nil), WithArg("C", nil))
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, tx.GetArgs())
}

func TestTransaction_Fingerprint(t *testing.T) {
	tx, err := NewTransaction(2, WithCreator("ab"), WithArg("A", []byte{1}), WithArg("B", []byte{2}))
	require.NoError(t, err)

	buffer := new(bytes.Buffer)

	err = tx.Fingerprint(buffer)
	require.NoError(t, err)
	require.Equal(t, "\x02\x00\x00\x00\x00\x00\x00\x00"+
		"\x02\x00\x00\x00\x00\x00\x00\x00ab"+
		"\x01\x00\x00\x00\x00\x00\x00\x00A\x01\x00\x00\x00\x00\x00\x00\x00\x01"+
		"\x01\x00\x00\x00\x00\x00\x00\x00B\x01\x00\x00\x00\x00\x00\x00\x00\x02",
		buffer.String())

	err = tx.Fingerprint(fake.NewBadHash())
	require.EqualError(t, err, fake.Err("couldn't write nonce"))

	err = tx.Fingerprint(fake.NewBadHashWithDelay(1))
	require.EqualError(t, err, fake.Err("couldn't write creator"))

	err = tx.Fingerprint(fake.NewBadHashWithDelay(2))
	require.EqualError(t, err, fake.Err("couldn't write arg"))

	err = tx.Fingerprint(fake.NewBadHashWithDelay(3))
	require.EqualError(t, err, fake.Err("couldn't write arg"))
}

func TestTransaction_FieldBoundaries(t *testing.T) {
	tx1, err := NewTransaction(1, WithCreator("a"), WithArg("b", []byte("c")))
	require.NoError(t, err)

	tx2, err := NewTransaction(1, WithCreator("ab"), WithArg("c", nil))
	require.NoError(t, err)
	require.NotEqual(t, tx1.GetID(), tx2.GetID())

	tx3, err := NewTransaction(1, WithArg("k", []byte("v1")))
	require.NoError(t, err)

	tx4, err := NewTransaction(1, WithArg("kv", []byte("1")))
	require.NoError(t, err)
	require.NotEqual(t, tx3.GetID(), tx4.GetID())
}

func TestTransaction_Serialize(t *testing.T) {
	tx, err := NewTransaction(0)
	require.NoError(t, err)

	data, err := tx.Serialize(fake.NewContextWithFormat(fake.GoodFormat))
	require.NoError(t, err)
	require.Equal(t, "fake format", string(data))

	_, err = tx.Serialize(fake.NewContextWithFormat(fake.BadFormat))
	require.EqualError(t, err, fake.Err("failed to encode"))
}

func TestTransactionFactory_Deserialize(t *testing.T) {
	factory := NewTransactionFactory()

	msg, err := factory.Deserialize(fake.NewContextWithFormat(fake.GoodFormat), nil)
	require.NoError(t, err)
	require.IsType(t, Transaction{}, msg)

	_, err = factory.Deserialize(fake.NewContextWithFormat(fake.BadFormat), nil)
	require.EqualError(t, err, fake.Err("failed to decode"))

	_, err = factory.Deserialize(fake.NewContextWithFormat(serde.Format("BAD_TYPE")), nil)
	require.EqualError(t, err, "invalid transaction of type 'fake.Message'")
}

func TestManager_Make(t *testing.T) {
	mgr := NewManager("alice", 5)

	tx, err := mgr.Make(txn.Arg{Key: "A", Value: []byte{1}})
	require.NoError(t, err)
	require.Equal(t, uint64(5), tx.GetNonce())
	require.Equal(t, "alice", tx.GetCreator())
	require.Equal(t, []byte{1}, tx.GetArg("A"))

	tx, err = mgr.Make()
	require.NoError(t, err)
	require.Equal(t, uint64(6), tx.GetNonce())
}
