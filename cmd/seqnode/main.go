// Package main implements the command line of a sequencer node. A node runs
// the ordering service and the ordering gate behind a gRPC server.
//
//	seqnode keygen --key node.key
//	seqnode start --config node.yaml
//	seqnode submit --orderer 127.0.0.1:2000 --creator alice --nonce 0 --arg k=v
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/sequencer"
	"go.dedis.ch/sequencer/core/ordering/transport/grpc"
	"go.dedis.ch/sequencer/core/txn/basic"
	"go.dedis.ch/sequencer/internal/tracing"
	"golang.org/x/xerrors"
)

const submitTimeout = 10 * time.Second

var printer io.Writer = os.Stderr
var stdout io.Writer = os.Stdout

func main() {
	err := run(os.Args, make(chan os.Signal, 1))
	if err != nil {
		fmt.Fprintf(printer, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string, sigs chan os.Signal) error {
	defer func() {
		err := tracing.CloseAll()
		if err != nil {
			sequencer.Logger.Warn().Err(err).Msg("failed to close tracers")
		}
	}()

	app := &cli.App{
		Name:   "seqnode",
		Usage:  "Proposal sequencer of a permissioned ledger",
		Writer: stdout,
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "start the node",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     "config",
						Usage:    "path to the YAML configuration",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					return startAction(c, sigs)
				},
			},
			{
				Name:  "submit",
				Usage: "submit a transaction to an ordering service",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "orderer",
						Usage:    "address of the ordering service",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "creator",
						Usage: "account creating the transaction",
					},
					&cli.Uint64Flag{
						Name:  "nonce",
						Usage: "sequence number of the creator",
					},
					&cli.StringSliceFlag{
						Name:  "arg",
						Usage: "argument of the transaction in the form key=value",
					},
				},
				Action: submitAction,
			},
			{
				Name:  "keygen",
				Usage: "generate the key of the node if it does not exist and print the public key",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  "key",
						Usage: "path to the private key",
						Value: "node.key",
					},
				},
				Action: keygenAction,
			},
		},
	}

	err := app.Run(args)
	if err != nil {
		return xerrors.Errorf("failed to execute the command: %v", err)
	}

	return nil
}

func startAction(c *cli.Context, sigs chan os.Signal) error {
	cfg, err := LoadConfig(c.Path("config"))
	if err != nil {
		return xerrors.Errorf("couldn't load config: %v", err)
	}

	n, err := startNode(cfg)
	if err != nil {
		return xerrors.Errorf("couldn't start the node: %v", err)
	}

	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	<-sigs

	err = n.Close()
	if err != nil {
		return xerrors.Errorf("couldn't stop the node: %v", err)
	}

	sequencer.Logger.Info().Msg("node has been stopped")

	return nil
}

func submitAction(c *cli.Context) error {
	opts := []basic.TransactionOption{basic.WithCreator(c.String("creator"))}

	for _, arg := range c.StringSlice("arg") {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return xerrors.Errorf("malformed argument '%s'", arg)
		}

		opts = append(opts, basic.WithArg(parts[0], []byte(parts[1])))
	}

	tx, err := basic.NewTransaction(c.Uint64("nonce"), opts...)
	if err != nil {
		return xerrors.Errorf("couldn't create transaction: %v", err)
	}

	client, err := grpc.NewTransport("seqnode-client", grpc.WithOrderer(c.String("orderer")))
	if err != nil {
		return xerrors.Errorf("couldn't create client: %v", err)
	}

	defer client.Close()

	ctx, cancel := context.WithTimeout(c.Context, submitTimeout)
	defer cancel()

	err = client.PropagateTransaction(ctx, tx)
	if err != nil {
		return xerrors.Errorf("couldn't submit transaction: %v", err)
	}

	fmt.Fprintf(c.App.Writer, "%x\n", tx.GetID())

	return nil
}

func keygenAction(c *cli.Context) error {
	pair, err := loadKey(c.Path("key"))
	if err != nil {
		return xerrors.Errorf("couldn't load key: %v", err)
	}

	text, err := publicKeyHex(pair)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, text)

	return nil
}
