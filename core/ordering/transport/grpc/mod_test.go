package grpc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/protobuf/ptypes/wrappers"
	otgrpc "github.com/opentracing-contrib/go-grpc"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/sequencer/core/ordering/types"
	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/core/txn/basic"
	"go.dedis.ch/sequencer/internal/testing/fake"
	"go.dedis.ch/sequencer/internal/tracing"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func init() {
	getTracerForAddr = fake.NoopTracerForAddr
}

func TestTransport_New(t *testing.T) {
	trans, err := NewTransport("127.0.0.1:0", WithOrderer("127.0.0.1:1"))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:0", trans.GetAddress())
	require.Equal(t, "127.0.0.1:1", trans.orderer)

	info := trans.server.GetServiceInfo()
	require.Contains(t, info, "sequencer.Ordering")
	require.Len(t, info["sequencer.Ordering"].Methods, 2)
	require.NoError(t, trans.Close())

	getTracerForAddr = fake.BadTracerForAddr
	defer func() {
		getTracerForAddr = fake.NoopTracerForAddr
	}()

	_, err = NewTransport("127.0.0.1:0")
	require.EqualError(t, err, fake.Err("failed to get tracer for addr 127.0.0.1:0"))
}

func TestTransport_Listen(t *testing.T) {
	trans := makeTransport(t)
	defer trans.Close()

	require.NotEqual(t, "127.0.0.1:0", trans.GetAddress())

	other, err := NewTransport(trans.GetAddress())
	require.NoError(t, err)

	err = other.Listen()
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to listen: ")
	require.NoError(t, other.Close())
}

func TestTransport_PublishProposal(t *testing.T) {
	sender := makeTransport(t)
	defer sender.Close()

	recv1 := makeTransport(t)
	defer recv1.Close()

	recv2 := makeTransport(t)
	defer recv2.Close()

	h1 := newProposalHandler()
	recv1.SetProposalHandler(h1)

	h2 := newProposalHandler()
	recv2.SetProposalHandler(h2)

	p := makeProposal(t, 4, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sender.PublishProposal(ctx, p, []string{recv1.GetAddress(), recv2.GetAddress()})
	require.NoError(t, err)

	for _, h := range []*proposalHandler{h1, h2} {
		received := h.get()
		require.Len(t, received, 1)
		require.Equal(t, p.GetHash(), received[0].GetHash())
		require.Equal(t, uint64(4), received[0].GetHeight())
		require.Equal(t, p.GetTransactions(), received[0].GetTransactions())
	}

	// The sender has no handler but the other peer still receives the proposal.
	err = sender.PublishProposal(ctx, p, []string{sender.GetAddress(), recv1.GetAddress()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no proposal handler")
	require.Len(t, h1.get(), 2)

	err = sender.PublishProposal(ctx, p, []string{""})
	require.EqualError(t, err, "couldn't reach '': empty address is not allowed")

	sender.context = fake.NewBadContext()
	err = sender.PublishProposal(ctx, p, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to serialize: ")
}

func TestTransport_PropagateTransaction(t *testing.T) {
	orderer := makeTransport(t)
	defer orderer.Close()

	gate, err := NewTransport("127.0.0.1:0", WithOrderer(orderer.GetAddress()),
		WithTransactionFactory(basic.NewTransactionFactory()),
		WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	defer gate.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx := makeTx(t, 3)

	err = gate.PropagateTransaction(ctx, tx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "submit failed: ")
	require.Contains(t, err.Error(), "no transaction handler")

	handler := newTxHandler()
	orderer.SetTransactionHandler(handler)

	err = gate.PropagateTransaction(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, []txn.Transaction{tx}, handler.get())

	err = orderer.PropagateTransaction(ctx, tx)
	require.EqualError(t, err, "orderer not set")

	gate.context = fake.NewBadContext()
	err = gate.PropagateTransaction(ctx, tx)
	require.EqualError(t, err, fake.Err("failed to serialize: failed to encode: failed to marshal"))
}

func TestDecorateSpan(t *testing.T) {
	var decorator otgrpc.SpanDecoratorFunc = decorateSpan

	tracer := mocktracer.New()
	span := tracer.StartSpan("call").(*mocktracer.MockSpan)

	decorator(context.Background(), span, "/sequencer.Ordering/PublishProposal", nil, nil, nil)

	require.Equal(t, protocolName, span.Tag(tracing.ProtocolTag))
}

func TestHandler_SubmitTransaction(t *testing.T) {
	trans := makeTransport(t)
	defer trans.Close()

	h := handler{Transport: trans}

	_, err := h.SubmitTransaction(context.Background(), &wrappers.BytesValue{})
	require.Equal(t, codes.Unavailable, status.Code(err))

	trans.SetTransactionHandler(newTxHandler())

	_, err = h.SubmitTransaction(context.Background(), &wrappers.BytesValue{Value: []byte("{")})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHandler_PublishProposal(t *testing.T) {
	trans := makeTransport(t)
	defer trans.Close()

	h := handler{Transport: trans}

	_, err := h.PublishProposal(context.Background(), &wrappers.BytesValue{})
	require.Equal(t, codes.Unavailable, status.Code(err))

	trans.SetProposalHandler(newProposalHandler())

	_, err = h.PublishProposal(context.Background(), &wrappers.BytesValue{Value: []byte("{")})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// -----------------------------------------------------------------------------
// Utility functions

func makeTransport(t *testing.T) *Transport {
	trans, err := NewTransport("127.0.0.1:0", WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	require.NoError(t, trans.Listen())

	return trans
}

func makeTx(t *testing.T, nonce uint64) txn.Transaction {
	tx, err := basic.NewTransaction(nonce, basic.WithCreator("alice"))
	require.NoError(t, err)

	return tx
}

func makeProposal(t *testing.T, height uint64, n int) types.Proposal {
	txs := make([]txn.Transaction, n)
	for i := range txs {
		txs[i] = makeTx(t, uint64(i))
	}

	p, err := types.NewProposal(height, txs)
	require.NoError(t, err)

	return p
}

type proposalHandler struct {
	sync.Mutex
	proposals []types.Proposal
}

func newProposalHandler() *proposalHandler {
	return &proposalHandler{}
}

func (h *proposalHandler) OnProposal(p types.Proposal) {
	h.Lock()
	h.proposals = append(h.proposals, p)
	h.Unlock()
}

func (h *proposalHandler) get() []types.Proposal {
	h.Lock()
	defer h.Unlock()

	return append([]types.Proposal{}, h.proposals...)
}

type txHandler struct {
	sync.Mutex
	txs []txn.Transaction
}

func newTxHandler() *txHandler {
	return &txHandler{}
}

func (h *txHandler) OnTransaction(tx txn.Transaction) {
	h.Lock()
	h.txs = append(h.txs, tx)
	h.Unlock()
}

func (h *txHandler) get() []txn.Transaction {
	h.Lock()
	defer h.Unlock()

	return append([]txn.Transaction{}, h.txs...)
}
