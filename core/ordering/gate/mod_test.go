package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/sequencer/core/ordering"
	"go.dedis.ch/sequencer/core/ordering/types"
	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/core/txn/basic"
	"go.dedis.ch/sequencer/internal/testing/fake"
)

func TestGate_New(t *testing.T) {
	trans := &fakeTransport{}

	gate := NewGate(trans, WithPropagateTimeout(time.Second))
	require.Same(t, gate, trans.handler)
	require.Equal(t, time.Second, gate.timeout)
	require.True(t, gate.roundLock)

	gate = NewGate(trans, WithoutRoundLock())
	require.False(t, gate.roundLock)
}

func TestGate_Propagate(t *testing.T) {
	trans := &fakeTransport{}

	logger, check := fake.CheckLog(zerolog.WarnLevel, "failed to propagate transaction")

	gate := NewGate(trans, WithLogger(logger))

	tx := makeTx(t, 0)

	gate.Propagate(tx)
	require.Equal(t, []txn.Transaction{tx}, trans.txs)

	// Failures are never reported to the caller.
	trans.err = fake.GetError()
	gate.Propagate(tx)
	require.Len(t, trans.txs, 2)
	check(t)
}

func TestGate_OnProposal(t *testing.T) {
	gate := NewGate(&fakeTransport{}, WithLogger(zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := gate.Watch(ctx)

	gate.OnProposal(makeProposal(t, 0))
	gate.OnProposal(makeProposal(t, 1))
	gate.OnProposal(makeProposal(t, 2))

	p := <-events
	require.Equal(t, uint64(0), p.GetHeight())
	require.Equal(t, 2, gate.Queued())
	requireNoEvent(t, events)

	gate.OnCommit(ordering.Commit{Height: 0})

	p = <-events
	require.Equal(t, uint64(1), p.GetHeight())
	require.Equal(t, 1, gate.Queued())

	gate.OnCommit(ordering.Commit{Height: 1})
	gate.OnCommit(ordering.Commit{Height: 2})

	p = <-events
	require.Equal(t, uint64(2), p.GetHeight())
	require.Equal(t, 0, gate.Queued())

	// The round is already free so the proposal is released immediately.
	gate.OnProposal(makeProposal(t, 3))

	p = <-events
	require.Equal(t, uint64(3), p.GetHeight())
}

func TestGate_WithoutRoundLock(t *testing.T) {
	gate := NewGate(&fakeTransport{}, WithoutRoundLock(), WithLogger(zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := gate.Watch(ctx)

	for i := 0; i < 3; i++ {
		gate.OnProposal(makeProposal(t, uint64(i)))
	}

	for i := 0; i < 3; i++ {
		p := <-events
		require.Equal(t, uint64(i), p.GetHeight())
	}

	require.Equal(t, 0, gate.Queued())
}

func TestGate_Watch(t *testing.T) {
	gate := NewGate(&fakeTransport{}, WithoutRoundLock(), WithLogger(zerolog.Nop()))

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	events1 := gate.Watch(ctx1)
	events2 := gate.Watch(ctx2)
	require.Equal(t, 2, gate.watcher.len())

	gate.OnProposal(makeProposal(t, 5))

	require.Equal(t, uint64(5), (<-events1).GetHeight())
	require.Equal(t, uint64(5), (<-events2).GetHeight())

	cancel1()

	_, more := <-events1
	require.False(t, more)
	require.Equal(t, 1, gate.watcher.len())

	gate.OnProposal(makeProposal(t, 6))
	require.Equal(t, uint64(6), (<-events2).GetHeight())
}

func TestGate_SlowSubscriber(t *testing.T) {
	gate := NewGate(&fakeTransport{}, WithoutRoundLock(), WithLogger(zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())

	gate.Watch(ctx)

	// The subscriber never reads: the gate is blocked until it leaves.
	for i := 0; i < watchSize; i++ {
		gate.OnProposal(makeProposal(t, uint64(i)))
	}

	last := makeProposal(t, watchSize)

	done := make(chan struct{})
	go func() {
		gate.OnProposal(last)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("subscriber should block the gate")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("gate still blocked")
	}
}

func TestGate_ListenCommits(t *testing.T) {
	gate := NewGate(&fakeTransport{}, WithLogger(zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := gate.Watch(ctx)
	commits := make(chan ordering.Commit)

	gate.ListenCommits(ctx, commits)

	gate.OnProposal(makeProposal(t, 0))
	gate.OnProposal(makeProposal(t, 1))

	require.Equal(t, uint64(0), (<-events).GetHeight())

	commits <- ordering.Commit{Height: 0}

	require.Equal(t, uint64(1), (<-events).GetHeight())

	close(commits)
}

func TestGate_Concurrent(t *testing.T) {
	gate := NewGate(&fakeTransport{}, WithLogger(zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := gate.Watch(ctx)

	const n = 20

	proposals := make([]types.Proposal, n)
	for i := range proposals {
		proposals[i] = makeProposal(t, uint64(i))
	}

	var wg sync.WaitGroup
	wg.Add(n)

	for _, p := range proposals {
		go func(p types.Proposal) {
			defer wg.Done()
			gate.OnProposal(p)
		}(p)
	}

	wg.Wait()

	seen := make(map[uint64]struct{})
	for i := 0; i < n; i++ {
		p := <-events
		seen[p.GetHeight()] = struct{}{}

		gate.OnCommit(ordering.Commit{Height: p.GetHeight()})
	}

	require.Len(t, seen, n)
	requireNoEvent(t, events)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeTx(t *testing.T, nonce uint64) txn.Transaction {
	tx, err := basic.NewTransaction(nonce)
	require.NoError(t, err)

	return tx
}

func makeProposal(t *testing.T, height uint64) types.Proposal {
	p, err := types.NewProposal(height, []txn.Transaction{makeTx(t, height)})
	require.NoError(t, err)

	return p
}

func requireNoEvent(t *testing.T, events <-chan types.Proposal) {
	select {
	case p := <-events:
		t.Fatalf("unexpected proposal at height %d", p.GetHeight())
	case <-time.After(20 * time.Millisecond):
	}
}

type fakeTransport struct {
	handler ordering.ProposalHandler
	txs     []txn.Transaction
	err     error
}

func (t *fakeTransport) SetProposalHandler(h ordering.ProposalHandler) {
	t.handler = h
}

func (t *fakeTransport) PropagateTransaction(ctx context.Context, tx txn.Transaction) error {
	t.txs = append(t.txs, tx)

	return t.err
}
