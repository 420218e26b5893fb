// Package roster implements the peer queries of the ordering service.
package roster

import (
	"sync"

	"go.dedis.ch/sequencer/core/ordering"
	"golang.org/x/xerrors"
)

// Roster is a static list of peers.
//
// - implements ordering.PeerQuery
type Roster struct {
	peers []ordering.Peer
}

// New creates a roster from the list of peers.
func New(peers ...ordering.Peer) Roster {
	return Roster{
		peers: append([]ordering.Peer{}, peers...),
	}
}

// CurrentPeers implements ordering.PeerQuery. It returns a copy of the list of
// peers.
func (r Roster) CurrentPeers() ([]ordering.Peer, error) {
	return append([]ordering.Peer{}, r.peers...), nil
}

// Dynamic is a roster that can be updated while it is used. Peers are
// identified by their address.
//
// - implements ordering.PeerQuery
type Dynamic struct {
	sync.Mutex

	peers []ordering.Peer
}

// NewDynamic creates a roster initialized with the list of peers.
func NewDynamic(peers ...ordering.Peer) *Dynamic {
	return &Dynamic{
		peers: append([]ordering.Peer{}, peers...),
	}
}

// CurrentPeers implements ordering.PeerQuery. It returns the list of peers at
// the time of the call.
func (r *Dynamic) CurrentPeers() ([]ordering.Peer, error) {
	r.Lock()
	defer r.Unlock()

	return append([]ordering.Peer{}, r.peers...), nil
}

// Add appends the peer to the roster. It returns an error if a peer with the
// same address already exists.
func (r *Dynamic) Add(peer ordering.Peer) error {
	r.Lock()
	defer r.Unlock()

	if r.indexOf(peer.Address) >= 0 {
		return xerrors.Errorf("peer '%s' already exists", peer.Address)
	}

	r.peers = append(r.peers, peer)

	return nil
}

// Remove removes the peer with the address from the roster. It returns an
// error if the peer does not exist.
func (r *Dynamic) Remove(addr string) error {
	r.Lock()
	defer r.Unlock()

	index := r.indexOf(addr)
	if index < 0 {
		return xerrors.Errorf("peer '%s' not found", addr)
	}

	r.peers = append(r.peers[:index:index], r.peers[index+1:]...)

	return nil
}

func (r *Dynamic) indexOf(addr string) int {
	for i, peer := range r.peers {
		if peer.Address == addr {
			return i
		}
	}

	return -1
}

// Addresses returns the addresses of the peers in the same order.
func Addresses(peers []ordering.Peer) []string {
	addrs := make([]string, len(peers))
	for i, peer := range peers {
		addrs[i] = peer.Address
	}

	return addrs
}
