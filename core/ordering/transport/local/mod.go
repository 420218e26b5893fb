// Package local implements a transport of the ordering layer that connects
// instances living in the same process.
//
// Every message is serialized and deserialized on its way so that the
// instances never share memory, like they would with a real network. Its usage
// is mainly to simplify the writing of tests, therefore it also provides
// filters to drop messages.
package local

import (
	"context"
	"sync"

	"go.dedis.ch/sequencer"
	"go.dedis.ch/sequencer/core/ordering"
	"go.dedis.ch/sequencer/core/ordering/types"
	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/core/txn/basic"
	"go.dedis.ch/sequencer/serde"
	"go.dedis.ch/sequencer/serde/json"
	"golang.org/x/xerrors"
)

// Filter is a function called for any message sent to an address. The message
// is dropped if it returns false.
type Filter func(to string, msg serde.Message) bool

// Manager is an orchestrator to manage the communication between the local
// instances.
type Manager struct {
	sync.Mutex

	instances map[string]*Transport
}

// NewManager creates a new empty manager.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[string]*Transport),
	}
}

func (m *Manager) get(addr string) *Transport {
	m.Lock()
	defer m.Unlock()

	return m.instances[addr]
}

func (m *Manager) insert(inst *Transport) error {
	if inst.address == "" {
		return xerrors.New("address must not be empty")
	}

	m.Lock()
	defer m.Unlock()

	if _, ok := m.instances[inst.address]; ok {
		return xerrors.Errorf("address '%s' already exists", inst.address)
	}

	m.instances[inst.address] = inst

	return nil
}

func (m *Manager) remove(addr string) {
	m.Lock()
	delete(m.instances, addr)
	m.Unlock()
}

// Transport is an implementation of the service and gate transports that
// exchanges the messages through the manager.
//
// - implements ordering.ServiceTransport
// - implements ordering.GateTransport
type Transport struct {
	sync.Mutex

	manager     *Manager
	address     string
	orderer     string
	context     serde.Context
	txFac       txn.Factory
	proposalFac types.ProposalFactory
	txHandler   ordering.TransactionHandler
	pHandler    ordering.ProposalHandler
	filters     []Filter
}

type template struct {
	orderer string
	txFac   txn.Factory
}

// Option is the type of option to set some fields of the transport.
type Option func(*template)

// WithOrderer is an option to set the address of the ordering service the
// transactions are forwarded to.
func WithOrderer(addr string) Option {
	return func(tmpl *template) {
		tmpl.orderer = addr
	}
}

// WithTransactionFactory is an option to set the factory used to deserialize
// the transactions.
func WithTransactionFactory(fac txn.Factory) Option {
	return func(tmpl *template) {
		tmpl.txFac = fac
	}
}

// NewTransport creates a new transport registered in the manager with the
// address.
func NewTransport(manager *Manager, addr string, opts ...Option) (*Transport, error) {
	tmpl := template{
		txFac: basic.NewTransactionFactory(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	inst := &Transport{
		manager:     manager,
		address:     addr,
		orderer:     tmpl.orderer,
		context:     json.NewContext(),
		txFac:       tmpl.txFac,
		proposalFac: types.NewProposalFactory(tmpl.txFac),
	}

	err := manager.insert(inst)
	if err != nil {
		return nil, xerrors.Errorf("manager refused: %v", err)
	}

	sequencer.Logger.Trace().Msgf("new local transport with address %s", addr)

	return inst, nil
}

// MustCreate creates a new transport and panics if the address is refused by
// the manager.
func MustCreate(manager *Manager, addr string, opts ...Option) *Transport {
	inst, err := NewTransport(manager, addr, opts...)
	if err != nil {
		panic(err)
	}

	return inst
}

// GetAddress returns the address of the transport.
func (t *Transport) GetAddress() string {
	return t.address
}

// AddFilter adds the filter to the list of filters applied to the outgoing
// messages.
func (t *Transport) AddFilter(filter Filter) {
	t.Lock()
	t.filters = append(t.filters, filter)
	t.Unlock()
}

// Close removes the transport from the manager. The other instances cannot
// reach it anymore.
func (t *Transport) Close() error {
	t.manager.remove(t.address)

	return nil
}

// SetTransactionHandler implements ordering.ServiceTransport.
func (t *Transport) SetTransactionHandler(h ordering.TransactionHandler) {
	t.Lock()
	t.txHandler = h
	t.Unlock()
}

// SetProposalHandler implements ordering.GateTransport.
func (t *Transport) SetProposalHandler(h ordering.ProposalHandler) {
	t.Lock()
	t.pHandler = h
	t.Unlock()
}

// PublishProposal implements ordering.ServiceTransport. It delivers the
// proposal to every address in order. The delivery continues after a failure
// and the first error is returned. A handler that does not return before the
// context is done is left behind and the publication is interrupted.
func (t *Transport) PublishProposal(ctx context.Context, p types.Proposal, addrs []string) error {
	data, err := p.Serialize(t.context)
	if err != nil {
		return xerrors.Errorf("failed to serialize: %v", err)
	}

	var first error

	for _, addr := range addrs {
		if ctx.Err() != nil {
			return xerrors.Errorf("publish interrupted: %v", ctx.Err())
		}

		if !t.accept(addr, p) {
			continue
		}

		done := make(chan error, 1)
		go func(addr string) {
			done <- t.deliverProposal(addr, data)
		}(addr)

		var err error
		select {
		case err = <-done:
		case <-ctx.Done():
			return xerrors.Errorf("publish interrupted: %v", ctx.Err())
		}

		if err != nil && first == nil {
			first = xerrors.Errorf("couldn't reach '%s': %v", addr, err)
		}
	}

	return first
}

// PropagateTransaction implements ordering.GateTransport. It sends the
// transaction to the ordering service.
func (t *Transport) PropagateTransaction(ctx context.Context, tx txn.Transaction) error {
	if t.orderer == "" {
		return xerrors.New("orderer not set")
	}

	data, err := tx.Serialize(t.context)
	if err != nil {
		return xerrors.Errorf("failed to serialize: %v", err)
	}

	if !t.accept(t.orderer, tx) {
		return nil
	}

	peer := t.manager.get(t.orderer)
	if peer == nil {
		return xerrors.Errorf("orderer '%s' not found", t.orderer)
	}

	peer.Lock()
	handler := peer.txHandler
	peer.Unlock()

	if handler == nil {
		return xerrors.Errorf("orderer '%s' has no handler", t.orderer)
	}

	msg, err := peer.txFac.TransactionOf(peer.context, data)
	if err != nil {
		return xerrors.Errorf("failed to deserialize: %v", err)
	}

	handler.OnTransaction(msg)

	return nil
}

func (t *Transport) deliverProposal(addr string, data []byte) error {
	peer := t.manager.get(addr)
	if peer == nil {
		return xerrors.New("address not found")
	}

	peer.Lock()
	handler := peer.pHandler
	peer.Unlock()

	if handler == nil {
		return xerrors.New("no handler")
	}

	p, err := peer.proposalFac.ProposalOf(peer.context, data)
	if err != nil {
		return xerrors.Errorf("failed to deserialize: %v", err)
	}

	handler.OnProposal(p)

	return nil
}

func (t *Transport) accept(to string, msg serde.Message) bool {
	t.Lock()
	defer t.Unlock()

	for _, filter := range t.filters {
		if !filter(to, msg) {
			return false
		}
	}

	return true
}
