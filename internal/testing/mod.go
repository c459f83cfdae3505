// Package testing provides helpers to start a run of parties in tests.
package testing

import (
	"context"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mpcsum/peer"
	"go.dedis.ch/mpcsum/registry/standard"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/sync/errgroup"
)

// TestNode is a party started for a test, with its socket.
type TestNode struct {
	peer.Peer
	config peer.Configuration
	socket transport.ClosableSocket
}

// GetIns returns the packets received by the party.
func (t TestNode) GetIns() []transport.Packet {
	return t.socket.GetIns()
}

// GetOuts returns the packets sent by the party.
func (t TestNode) GetOuts() []transport.Packet {
	return t.socket.GetOuts()
}

// GetConfig returns the configuration of the party.
func (t TestNode) GetConfig() peer.Configuration {
	return t.config
}

// Stop stops the party and closes its socket.
func (t TestNode) Stop() error {
	err := t.Peer.Stop()
	closeErr := t.socket.Close()
	if err != nil {
		return err
	}
	return closeErr
}

type configTemplate struct {
	threshold    int
	prime        uint64
	secrets      []uint64
	roundTimeout time.Duration
	writeTimeout time.Duration
	autoStart    bool
	connect      bool
}

func newConfigTemplate() configTemplate {
	return configTemplate{
		threshold:    1,
		roundTimeout: 5 * time.Second,
		writeTimeout: time.Second,
		autoStart:    true,
		connect:      true,
	}
}

// Option is the type of option for a test run.
type Option func(*configTemplate)

// WithThreshold sets the threshold of every party.
func WithThreshold(t int) Option {
	return func(ct *configTemplate) {
		ct.threshold = t
	}
}

// WithPrime sets the order of the field.
func WithPrime(p uint64) Option {
	return func(ct *configTemplate) {
		ct.prime = p
	}
}

// WithSecrets sets the secret of the i-th party to secrets[i]. Parties
// without one draw a random secret.
func WithSecrets(secrets ...uint64) Option {
	return func(ct *configTemplate) {
		ct.secrets = secrets
	}
}

// WithRoundTimeout sets the round timeout of every party.
func WithRoundTimeout(d time.Duration) Option {
	return func(ct *configTemplate) {
		ct.roundTimeout = d
	}
}

// WithWriteTimeout sets the write timeout of every party.
func WithWriteTimeout(d time.Duration) Option {
	return func(ct *configTemplate) {
		ct.writeTimeout = d
	}
}

// WithAutostart sets whether the parties are started.
func WithAutostart(autostart bool) Option {
	return func(ct *configTemplate) {
		ct.autoStart = autostart
	}
}

// WithoutConnect skips connecting the parties to each other. Streams are then
// opened on the first send.
func WithoutConnect() Option {
	return func(ct *configTemplate) {
		ct.connect = false
	}
}

// NewTestNodes creates n parties with ids 1..n on the transport. Sockets are
// created first so that every party knows the address of the others.
func NewTestNodes(t require.TestingT, f peer.Factory, transp transport.Transport,
	n int, opts ...Option) []TestNode {

	template := newConfigTemplate()
	for _, opt := range opts {
		opt(&template)
	}

	sockets := make([]transport.ClosableSocket, n)
	addrs := make(map[types.PartyID]string, n)
	for i := 0; i < n; i++ {
		sock, err := transp.CreateSocket("127.0.0.1:0")
		require.NoError(t, err)
		sockets[i] = sock
		addrs[types.PartyID(i+1)] = sock.GetAddress()
	}

	nodes := make([]TestNode, n)
	for i := 0; i < n; i++ {
		id := types.PartyID(i + 1)

		peers := make(map[types.PartyID]string, n-1)
		for other, addr := range addrs {
			if other != id {
				peers[other] = addr
			}
		}

		config := peer.Configuration{
			Socket:          sockets[i],
			MessageRegistry: standard.NewRegistry(),
			PartyID:         id,
			Peers:           peers,
			Threshold:       template.threshold,
			Prime:           template.prime,
			RoundTimeout:    template.roundTimeout,
			WriteTimeout:    template.writeTimeout,
		}
		if i < len(template.secrets) {
			secret := template.secrets[i]
			config.Secret = &secret
		}

		node, err := f(config)
		require.NoError(t, err)

		if template.autoStart {
			require.NoError(t, node.Start())
		}

		nodes[i] = TestNode{Peer: node, config: config, socket: sockets[i]}
	}

	if template.connect {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		for _, node := range nodes {
			node := node
			g.Go(func() error {
				return node.Connect(ctx)
			})
		}
		require.NoError(t, g.Wait())
	}

	return nodes
}

// StopAll stops every party.
func StopAll(nodes []TestNode) {
	for _, node := range nodes {
		node.Stop()
	}
}
