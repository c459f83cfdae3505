package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcsum/httpserver"
	"go.dedis.ch/mpcsum/peer"
	"go.dedis.ch/mpcsum/peer/impl"
	"go.dedis.ch/mpcsum/registry/standard"
	"go.dedis.ch/mpcsum/transport/tcp"
	"golang.org/x/xerrors"
)

// SetupLogger sets the global logger: human readable output on stderr at the
// given level.
func SetupLogger(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return xerrors.Errorf("log level %q: %v: %w", level, err, ErrConfig)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	return nil
}

// NewParty creates a party listening on its configured address. The party is
// not started.
func NewParty(conf Config) (peer.Peer, func() error, error) {
	endpoints, err := conf.Resolve()
	if err != nil {
		return nil, nil, err
	}

	transp := tcp.NewTCP(tcp.WithBackoff(conf.Backoff))
	sock, err := transp.CreateSocket(endpoints.Self)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to listen on %s: %v", endpoints.Self, err)
	}

	node, err := impl.NewPeer(peer.Configuration{
		Socket:          sock,
		MessageRegistry: standard.NewRegistry(),
		PartyID:         conf.PartyID,
		Peers:           endpoints.Peers,
		Threshold:       conf.GetThreshold(),
		Prime:           conf.Prime,
		Secret:          conf.Secret,
		RoundTimeout:    conf.RoundTimeout,
		WriteTimeout:    conf.WriteTimeout,
	})
	if err != nil {
		sock.Close()
		return nil, nil, xerrors.Errorf("%v: %w", err, ErrConfig)
	}

	return node, sock.Close, nil
}

// StartParty runs a party until it is interrupted, or until the operator
// leaves the prompt in interactive mode.
func StartParty(conf Config) error {
	err := SetupLogger(conf.LogLevel)
	if err != nil {
		return err
	}

	node, closeSocket, err := NewParty(conf)
	if err != nil {
		return err
	}
	defer closeSocket()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = node.Start()
	if err != nil {
		return err
	}
	defer node.Stop()

	if conf.MetricsAddr != "" {
		srv := httpserver.NewServer(conf.MetricsAddr, node)
		srv.Start()
		defer srv.Stop()
	}

	printBanner(node, conf)

	// peers are usually started one after the other, connecting must not
	// hold back the commands
	go func() {
		err := node.Connect(ctx)
		if err != nil {
			log.Error().Err(err).Msgf("party %d: not connected to every peer", node.GetPartyID())
			return
		}
		log.Info().Msgf("party %d: connected to every peer", node.GetPartyID())
	}()

	if conf.Interactive {
		performActions(ctx, node)
		return nil
	}

	<-ctx.Done()
	fmt.Println("bye 👋")
	return nil
}

func printBanner(node peer.Peer, conf Config) {
	fmt.Println("##########################################")
	fmt.Println("######     Starting a MPC party      ######")
	fmt.Println("##########################################")
	fmt.Println("Party id: ", node.GetPartyID())
	fmt.Println("Listening on: ", node.GetAddr())
	fmt.Println("Threshold: ", conf.GetThreshold())
	fmt.Println()
}
