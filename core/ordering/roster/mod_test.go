package roster

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/sequencer/core/ordering"
	"go.dedis.ch/sequencer/crypto/ed25519"
)

func TestRoster_CurrentPeers(t *testing.T) {
	peers := makePeers(t, 3)

	roster := New(peers...)

	current, err := roster.CurrentPeers()
	require.NoError(t, err)
	require.Equal(t, peers, current)

	current[0] = ordering.Peer{}

	current, err = roster.CurrentPeers()
	require.NoError(t, err)
	require.Equal(t, peers[0], current[0])

	current, err = New().CurrentPeers()
	require.NoError(t, err)
	require.Empty(t, current)
}

func TestDynamic_Add(t *testing.T) {
	peers := makePeers(t, 2)

	roster := NewDynamic(peers[0])

	err := roster.Add(peers[1])
	require.NoError(t, err)

	current, err := roster.CurrentPeers()
	require.NoError(t, err)
	require.Equal(t, peers, current)

	err = roster.Add(peers[0])
	require.EqualError(t, err, "peer 'node0' already exists")
}

func TestDynamic_Remove(t *testing.T) {
	peers := makePeers(t, 3)

	roster := NewDynamic(peers...)

	current, err := roster.CurrentPeers()
	require.NoError(t, err)

	err = roster.Remove("node1")
	require.NoError(t, err)

	after, err := roster.CurrentPeers()
	require.NoError(t, err)
	require.Equal(t, []string{"node0", "node2"}, Addresses(after))
	require.Equal(t, []string{"node0", "node1", "node2"}, Addresses(current))

	err = roster.Remove("node1")
	require.EqualError(t, err, "peer 'node1' not found")
}

func TestDynamic_Concurrent(t *testing.T) {
	roster := NewDynamic()
	peers := makePeers(t, 20)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		for _, peer := range peers {
			roster.Add(peer)
		}
	}()

	go func() {
		defer wg.Done()

		for i := 0; i < 20; i++ {
			roster.CurrentPeers()
		}
	}()

	wg.Wait()

	current, err := roster.CurrentPeers()
	require.NoError(t, err)
	require.Len(t, current, 20)
}

// -----------------------------------------------------------------------------
// Utility functions

func makePeers(t *testing.T, n int) []ordering.Peer {
	peers := make([]ordering.Peer, n)
	for i := range peers {
		peers[i] = ordering.Peer{
			Address:   fmt.Sprintf("node%d", i),
			PublicKey: ed25519.NewKeyPair().GetPublicKey(),
		}
	}

	return peers
}
