package peer

import (
	"context"
	"time"

	"go.dedis.ch/mpcsum/registry"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
)

// Peer defines the interface of a party in the summation.
type Peer interface {
	Service
	MPC
}

// Factory is the type of function we are using to create new instances of
// peers.
type Factory func(Configuration) (Peer, error)

// Service defines the functions for the basic operations of a peer.
type Service interface {
	// Start starts handling the commands received on the socket. It returns
	// once ready.
	Start() error

	// Stop stops the node and waits for the commands being handled.
	Stop() error

	// Connect opens the outbound streams to every peer, when the socket keeps
	// long-lived connections. It blocks until all are up or one failed.
	Connect(ctx context.Context) error

	// GetAddr returns the address the party listens on.
	GetAddr() string

	// GetPartyID returns the id of the party.
	GetPartyID() types.PartyID
}

// Configuration is the configuration of a party.
type Configuration struct {
	Socket          transport.Socket
	MessageRegistry registry.Registry

	// PartyID is the id of this party. It must not appear in Peers.
	PartyID types.PartyID

	// Peers maps the id of every other party to its listening address.
	Peers map[types.PartyID]string

	// Threshold t is the degree of the sharing polynomials: t+1 points are
	// needed to reconstruct. It must be lower than the number of parties.
	Threshold int

	// Prime is the order of the field. Default: 127.
	Prime uint64

	// Secret is used instead of a random secret when set. It must be lower
	// than Prime.
	Secret *uint64

	// RoundTimeout bounds the wait for the shares or sums of the other
	// parties. Default: 30s.
	RoundTimeout time.Duration

	// WriteTimeout bounds a single write to a peer. Default: 5s.
	WriteTimeout time.Duration
}

// AllParties returns the ids of every party, this one included.
func (c Configuration) AllParties() []types.PartyID {
	ids := make([]types.PartyID, 0, len(c.Peers)+1)
	ids = append(ids, c.PartyID)
	for id := range c.Peers {
		ids = append(ids, id)
	}
	return ids
}
