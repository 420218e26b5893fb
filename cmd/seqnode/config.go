package main

import (
	"os"
	"time"

	"go.dedis.ch/sequencer/core/ordering"
	"go.dedis.ch/sequencer/core/ordering/service"
	"go.dedis.ch/sequencer/crypto/ed25519"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// PeerConfig is the configuration of a peer of the ledger.
type PeerConfig struct {
	Address   string `yaml:"address"`
	PublicKey string `yaml:"key"`
}

// Config is the configuration of a node.
type Config struct {
	// Listen is the address of the gRPC server.
	Listen string `yaml:"listen"`

	// Orderer is the address of the ordering service the transactions are
	// forwarded to. It defaults to the local server.
	Orderer string `yaml:"orderer"`

	// DB is the path to the database of the node. It is ignored when Memory
	// is set.
	DB string `yaml:"db"`

	// Memory makes the node use a volatile height ledger.
	Memory bool `yaml:"memory"`

	// Key is the path to the private key of the node.
	Key string `yaml:"key"`

	MaxProposalSize int           `yaml:"maxProposalSize"`
	ProposalTimeout time.Duration `yaml:"proposalTimeout"`

	// Metrics is the address of the Prometheus endpoint. The endpoint is
	// disabled when empty.
	Metrics string `yaml:"metrics"`

	// RoundLock makes the gate release one proposal per commit.
	RoundLock bool `yaml:"roundLock"`

	Peers []PeerConfig `yaml:"peers"`
}

// DefaultConfig returns the configuration used for the fields missing in the
// configuration file.
func DefaultConfig() Config {
	return Config{
		Listen:          "127.0.0.1:2000",
		DB:              "sequencer.db",
		Key:             "node.key",
		MaxProposalSize: service.DefaultMaxProposalSize,
		ProposalTimeout: time.Second,
	}
}

// LoadConfig reads the configuration file at the path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to read config: %v", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses the YAML data on top of the default configuration and
// validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	err := yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to parse config: %v", err)
	}

	if cfg.Orderer == "" {
		cfg.Orderer = cfg.Listen
	}

	err = cfg.validate()
	if err != nil {
		return Config{}, xerrors.Errorf("invalid config: %v", err)
	}

	return cfg, nil
}

// GetPeers returns the list of peers with their decoded public keys.
func (cfg Config) GetPeers() ([]ordering.Peer, error) {
	peers := make([]ordering.Peer, len(cfg.Peers))

	for i, pc := range cfg.Peers {
		pk, err := ed25519.NewPublicKeyFromHex(pc.PublicKey)
		if err != nil {
			return nil, xerrors.Errorf("peer '%s': %v", pc.Address, err)
		}

		peers[i] = ordering.Peer{
			Address:   pc.Address,
			PublicKey: pk,
		}
	}

	return peers, nil
}

func (cfg Config) validate() error {
	if cfg.Listen == "" {
		return xerrors.New("listen address is missing")
	}

	if cfg.MaxProposalSize <= 0 {
		return xerrors.Errorf("max proposal size must be positive: %d", cfg.MaxProposalSize)
	}

	if cfg.ProposalTimeout <= 0 {
		return xerrors.Errorf("proposal timeout must be positive: %v", cfg.ProposalTimeout)
	}

	if !cfg.Memory && cfg.DB == "" {
		return xerrors.New("db path is missing")
	}

	seen := make(map[string]struct{})
	for _, peer := range cfg.Peers {
		if peer.Address == "" {
			return xerrors.New("peer address is missing")
		}

		if _, found := seen[peer.Address]; found {
			return xerrors.Errorf("duplicate peer '%s'", peer.Address)
		}

		seen[peer.Address] = struct{}{}
	}

	return nil
}
