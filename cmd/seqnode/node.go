package main

import (
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.dedis.ch/sequencer"
	"go.dedis.ch/sequencer/core/ordering"
	"go.dedis.ch/sequencer/core/ordering/gate"
	"go.dedis.ch/sequencer/core/ordering/height"
	"go.dedis.ch/sequencer/core/ordering/roster"
	"go.dedis.ch/sequencer/core/ordering/service"
	"go.dedis.ch/sequencer/core/ordering/transport/grpc"
	"go.dedis.ch/sequencer/core/ordering/types"
	"go.dedis.ch/sequencer/core/store/kv"
	"go.dedis.ch/sequencer/crypto/ed25519"
	"go.dedis.ch/sequencer/crypto/loader"
	"golang.org/x/xerrors"
)

const shutdownTimeout = 5 * time.Second

// node is a running instance made of the ordering service and the gate sharing
// the same gRPC transport.
type node struct {
	logger    zerolog.Logger
	db        kv.DB
	transport *grpc.Transport
	service   *service.Service
	gate      *gate.Gate
	metrics   *http.Server
	cancel    context.CancelFunc
}

// startNode creates and starts the components of the node described by the
// configuration.
func startNode(cfg Config) (*node, error) {
	logger := sequencer.Logger.With().Str("node", cfg.Listen).Logger()

	pair, err := loadKey(cfg.Key)
	if err != nil {
		return nil, xerrors.Errorf("key: %v", err)
	}

	logger.Info().Str("key", pair.GetPublicKey().String()).Msg("node key loaded")

	peers, err := cfg.GetPeers()
	if err != nil {
		return nil, xerrors.Errorf("peers: %v", err)
	}

	n := &node{logger: logger}

	var ledger ordering.HeightLedger

	if cfg.Memory {
		ledger = height.NewInMemory()
	} else {
		n.db, err = kv.New(cfg.DB)
		if err != nil {
			return nil, xerrors.Errorf("db: %v", err)
		}

		ledger = height.NewDiskLedger(n.db)
	}

	n.transport, err = grpc.NewTransport(cfg.Listen, grpc.WithOrderer(cfg.Orderer))
	if err != nil {
		n.Close()
		return nil, xerrors.Errorf("transport: %v", err)
	}

	n.service, err = service.NewService(ledger, roster.NewDynamic(peers...), n.transport,
		service.WithMaxProposalSize(cfg.MaxProposalSize),
		service.WithTimeout(cfg.ProposalTimeout))
	if err != nil {
		n.Close()
		return nil, xerrors.Errorf("service: %v", err)
	}

	opts := []gate.Option{}
	if !cfg.RoundLock {
		opts = append(opts, gate.WithoutRoundLock())
	}

	n.gate = gate.NewGate(n.transport, opts...)

	err = n.transport.Listen()
	if err != nil {
		n.Close()
		return nil, xerrors.Errorf("transport: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	go n.logProposals(n.gate.Watch(ctx))

	if cfg.Metrics != "" {
		err = n.serveMetrics(cfg.Metrics)
		if err != nil {
			n.Close()
			return nil, xerrors.Errorf("metrics: %v", err)
		}
	}

	logger.Info().
		Str("addr", n.transport.GetAddress()).
		Int("peers", len(peers)).
		Uint64("height", n.service.NextHeight()).
		Msg("node started")

	return n, nil
}

// Close stops the components of the node in the reverse order.
func (n *node) Close() error {
	if n.cancel != nil {
		n.cancel()
	}

	if n.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := n.metrics.Shutdown(ctx)
		if err != nil {
			n.logger.Warn().Err(err).Msg("failed to stop metrics server")
		}
	}

	if n.service != nil {
		err := n.service.Close()
		if err != nil {
			return xerrors.Errorf("failed to close service: %v", err)
		}
	}

	if n.transport != nil {
		err := n.transport.Close()
		if err != nil {
			return xerrors.Errorf("failed to close transport: %v", err)
		}
	}

	if n.db != nil {
		err := n.db.Close()
		if err != nil {
			return xerrors.Errorf("failed to close db: %v", err)
		}
	}

	return nil
}

// logProposals is the local subscriber of the gate. The agreement stage is
// not part of the node, so the released proposals are only reported.
func (n *node) logProposals(proposals <-chan types.Proposal) {
	for p := range proposals {
		n.logger.Info().
			Uint64("height", p.GetHeight()).
			Int("size", p.Len()).
			Str("digest", p.GetHash().String()).
			Msg("proposal released")
	}
}

func (n *node) serveMetrics(addr string) error {
	registry := prometheus.NewRegistry()

	for _, c := range sequencer.PromCollectors {
		err := registry.Register(c)
		if err != nil {
			return xerrors.Errorf("failed to register: %v", err)
		}
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return xerrors.Errorf("failed to listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	n.metrics = &http.Server{Handler: mux}

	go func() {
		err := n.metrics.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			n.logger.Err(err).Msg("metrics server stopped")
		}
	}()

	n.logger.Info().Str("addr", lis.Addr().String()).Msg("metrics available on /metrics")

	return nil
}

// keyGenerator generates a new Ed25519 private key.
//
// - implements loader.Generator
type keyGenerator struct{}

// Generate implements loader.Generator. It returns the marshaled private key.
func (keyGenerator) Generate() ([]byte, error) {
	data, err := ed25519.NewKeyPair().MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal key: %v", err)
	}

	return data, nil
}

// loadKey loads the private key at the path, or generates it if the file
// does not exist.
func loadKey(path string) (ed25519.KeyPair, error) {
	data, err := loader.NewFileLoader(path).LoadOrCreate(keyGenerator{})
	if err != nil {
		return ed25519.KeyPair{}, xerrors.Errorf("failed to load: %v", err)
	}

	pair, err := ed25519.NewKeyPairFromBytes(data)
	if err != nil {
		return ed25519.KeyPair{}, xerrors.Errorf("malformed key: %v", err)
	}

	return pair, nil
}

// publicKeyHex returns the hexadecimal encoding of the public key of the pair
// as expected in the configuration of the peers.
func publicKeyHex(pair ed25519.KeyPair) (string, error) {
	data, err := pair.GetPublicKey().MarshalBinary()
	if err != nil {
		return "", xerrors.Errorf("failed to marshal public key: %v", err)
	}

	return hex.EncodeToString(data), nil
}
