// Package grpc implements a transport of the ordering layer using gRPC.
//
// The transactions and the proposals are serialized with the JSON context and
// carried as protobuf bytes values. Every call is traced with the tracer of
// the local address. The connections are not encrypted.
package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/golang/protobuf/ptypes/empty"
	"github.com/golang/protobuf/ptypes/wrappers"
	otgrpc "github.com/opentracing-contrib/go-grpc"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog"
	"go.dedis.ch/sequencer"
	"go.dedis.ch/sequencer/core/ordering"
	"go.dedis.ch/sequencer/core/ordering/transport/grpc/ptypes"
	"go.dedis.ch/sequencer/core/ordering/types"
	"go.dedis.ch/sequencer/core/txn"
	"go.dedis.ch/sequencer/core/txn/basic"
	"go.dedis.ch/sequencer/internal/tracing"
	"go.dedis.ch/sequencer/serde"
	"go.dedis.ch/sequencer/serde/json"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const (
	defaultMinConnectTimeout = 7 * time.Second

	protocolName = "ordering"
)

// getTracerForAddr can be replaced in the tests.
var getTracerForAddr = tracing.GetTracerForAddr

// Transport is an implementation of the service and gate transports over gRPC.
//
// - implements ordering.ServiceTransport
// - implements ordering.GateTransport
type Transport struct {
	sync.Mutex

	logger      zerolog.Logger
	addr        string
	orderer     string
	context     serde.Context
	txFac       txn.Factory
	proposalFac types.ProposalFactory
	tracer      opentracing.Tracer
	txHandler   ordering.TransactionHandler
	pHandler    ordering.ProposalHandler
	server      *grpc.Server
	listener    net.Listener
	conns       map[string]*grpc.ClientConn
}

type template struct {
	orderer string
	txFac   txn.Factory
	logger  zerolog.Logger
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

// WithLogger is an option to set the logger of the transport.
func WithLogger(logger zerolog.Logger) Option {
	return func(tmpl *template) {
		tmpl.logger = logger
	}
}

// NewTransport creates a new transport that will listen on the address. The
// server is not started until Listen is called.
func NewTransport(addr string, opts ...Option) (*Transport, error) {
	tmpl := template{
		txFac:  basic.NewTransactionFactory(),
		logger: sequencer.Logger.With().Str("component", "grpc-transport").Logger(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	tracer, err := getTracerForAddr(addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to get tracer for addr %s: %v", addr, err)
	}

	t := &Transport{
		logger:      tmpl.logger.With().Str("addr", addr).Logger(),
		addr:        addr,
		orderer:     tmpl.orderer,
		context:     json.NewContext(),
		txFac:       tmpl.txFac,
		proposalFac: types.NewProposalFactory(tmpl.txFac),
		tracer:      tracer,
		conns:       make(map[string]*grpc.ClientConn),
	}

	t.server = grpc.NewServer(
		grpc.UnaryInterceptor(otgrpc.OpenTracingServerInterceptor(tracer,
			otgrpc.SpanDecorator(decorateSpan))),
	)

	ptypes.RegisterOrderingServer(t.server, handler{Transport: t})

	return t, nil
}

// Listen opens the socket and starts to serve the requests in the background.
func (t *Transport) Listen() error {
	lis, err := net.Listen("tcp", t.addr)
	if err != nil {
		return xerrors.Errorf("failed to listen: %v", err)
	}

	t.Lock()
	t.listener = lis
	t.Unlock()

	go func() {
		err := t.server.Serve(lis)
		if err != nil {
			t.logger.Err(err).Msg("server stopped unexpectedly")
		}
	}()

	t.logger.Info().Str("listen", lis.Addr().String()).Msg("transport listening")

	return nil
}

// GetAddress returns the address the server listens on, which can differ from
// the one it has been created with when the port is chosen by the system.
func (t *Transport) GetAddress() string {
	t.Lock()
	defer t.Unlock()

	if t.listener == nil {
		return t.addr
	}

	return t.listener.Addr().String()
}

// Close stops the server and closes the connections to the peers.
func (t *Transport) Close() error {
	t.server.Stop()

	t.Lock()
	defer t.Unlock()

	for addr, conn := range t.conns {
		err := conn.Close()
		if err != nil {
			return xerrors.Errorf("failed to close connection to %s: %v", addr, err)
		}

		delete(t.conns, addr)
	}

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

// PublishProposal implements ordering.ServiceTransport. It sends the proposal
// to every address in parallel and returns the first error if any. A failure
// does not interrupt the delivery to the other addresses.
func (t *Transport) PublishProposal(ctx context.Context, p types.Proposal, addrs []string) error {
	data, err := p.Serialize(t.context)
	if err != nil {
		return xerrors.Errorf("failed to serialize: %v", err)
	}

	errs := make([]error, len(addrs))

	var wg sync.WaitGroup
	wg.Add(len(addrs))

	for i, addr := range addrs {
		go func(i int, addr string) {
			defer wg.Done()

			client, err := t.getClient(addr)
			if err != nil {
				errs[i] = xerrors.Errorf("couldn't reach '%s': %v", addr, err)
				return
			}

			_, err = client.PublishProposal(ctx, &wrappers.BytesValue{Value: data})
			if err != nil {
				errs[i] = xerrors.Errorf("couldn't reach '%s': %v", addr, err)
			}
		}(i, addr)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
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

	client, err := t.getClient(t.orderer)
	if err != nil {
		return xerrors.Errorf("couldn't reach orderer: %v", err)
	}

	_, err = client.SubmitTransaction(ctx, &wrappers.BytesValue{Value: data})
	if err != nil {
		return xerrors.Errorf("submit failed: %v", err)
	}

	return nil
}

// getClient returns a client for the address. The connection is created the
// first time and then reused.
func (t *Transport) getClient(addr string) (ptypes.OrderingClient, error) {
	if addr == "" {
		return nil, xerrors.New("empty address is not allowed")
	}

	t.Lock()
	defer t.Unlock()

	conn, found := t.conns[addr]
	if !found {
		var err error
		conn, err = grpc.Dial(addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{
				Backoff:           backoff.DefaultConfig,
				MinConnectTimeout: defaultMinConnectTimeout,
			}),
			grpc.WithUnaryInterceptor(otgrpc.OpenTracingClientInterceptor(t.tracer,
				otgrpc.SpanDecorator(decorateSpan))),
		)
		if err != nil {
			return nil, xerrors.Errorf("failed to dial: %v", err)
		}

		t.conns[addr] = conn
	}

	return ptypes.NewOrderingClient(conn), nil
}

// handler is the gRPC server of the transport.
//
// - implements ptypes.OrderingServer
type handler struct {
	ptypes.UnimplementedOrderingServer
	*Transport
}

// SubmitTransaction implements ptypes.OrderingServer. It deserializes the transaction
// and hands it over to the transaction handler.
func (h handler) SubmitTransaction(ctx context.Context, in *wrappers.BytesValue) (*empty.Empty, error) {
	h.Lock()
	txHandler := h.txHandler
	h.Unlock()

	if txHandler == nil {
		return nil, status.Error(codes.Unavailable, "no transaction handler")
	}

	tx, err := h.txFac.TransactionOf(h.context, in.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to deserialize: %v", err)
	}

	txHandler.OnTransaction(tx)

	return &empty.Empty{}, nil
}

// PublishProposal implements ptypes.OrderingServer. It deserializes the proposal and
// hands it over to the proposal handler.
func (h handler) PublishProposal(ctx context.Context, in *wrappers.BytesValue) (*empty.Empty, error) {
	h.Lock()
	pHandler := h.pHandler
	h.Unlock()

	if pHandler == nil {
		return nil, status.Error(codes.Unavailable, "no proposal handler")
	}

	p, err := h.proposalFac.ProposalOf(h.context, in.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to deserialize: %v", err)
	}

	pHandler.OnProposal(p)

	return &empty.Empty{}, nil
}

func decorateSpan(ctx context.Context, span opentracing.Span, method string,
	req, resp interface{}, grpcError error) {

	span.SetTag(tracing.ProtocolTag, protocolName)
}
