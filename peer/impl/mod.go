package impl

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcsum/peer"
	"go.dedis.ch/mpcsum/peer/impl/mpc"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
)

const ReadTimeout = time.Millisecond * 100

// NewPeer creates a new party. The configuration is checked and the secret
// drawn here, the node only starts handling commands on Start.
func NewPeer(conf peer.Configuration) (peer.Peer, error) {
	if conf.Socket == nil || conf.MessageRegistry == nil {
		return nil, xerrors.Errorf("socket and message registry are required")
	}

	n := node{}
	n.conf = conf

	m, err := mpc.NewModule(&n.conf)
	if err != nil {
		return nil, xerrors.Errorf("party %d: %v", conf.PartyID, err)
	}
	n.Module = m

	return &n, nil
}

// node implements a party of the summation
//
// - implements peer.Peer
type node struct {
	*mpc.Module
	conf peer.Configuration

	sync.Mutex
	stopSig context.CancelFunc
	// handlers counts the commands being processed
	handlers sync.WaitGroup
	daemon   sync.WaitGroup
}

// Start implements peer.Service
func (n *node) Start() error {
	n.Lock()
	defer n.Unlock()

	if n.stopSig != nil {
		return xerrors.Errorf("party %d already started", n.conf.PartyID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.stopSig = cancel
	n.Module.SetContext(ctx)

	// start a new loop to listen to the commands (non-blocking)
	n.MessagingDaemon(ctx)

	log.Info().Msgf("party %d: started on %s", n.conf.PartyID, n.conf.Socket.GetAddress())
	return nil
}

// Stop implements peer.Service
func (n *node) Stop() error {
	n.Lock()
	defer n.Unlock()

	if n.stopSig == nil {
		return xerrors.Errorf("party %d not started", n.conf.PartyID)
	}
	n.stopSig()
	n.stopSig = nil

	n.daemon.Wait()
	n.handlers.Wait()
	return nil
}

// Connect implements peer.Service
func (n *node) Connect(ctx context.Context) error {
	connector, ok := n.conf.Socket.(transport.Connector)
	if !ok {
		return nil
	}

	addrs := make([]string, 0, len(n.conf.Peers))
	for _, addr := range n.conf.Peers {
		addrs = append(addrs, addr)
	}
	return connector.ConnectAll(ctx, addrs)
}

// GetAddr implements peer.Service
func (n *node) GetAddr() string {
	return n.conf.Socket.GetAddress()
}

// GetPartyID implements peer.Service
func (n *node) GetPartyID() types.PartyID {
	return n.conf.PartyID
}
