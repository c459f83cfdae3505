package mpc

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mpcsum/peer"
	"go.dedis.ch/mpcsum/registry/standard"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/transport/channel"
	"go.dedis.ch/mpcsum/types"
)

// newTestModule returns the module of party 1 in a run of three parties over
// an in-memory transport. The peers' sockets are returned to observe what
// party 1 sends.
func newTestModule(t *testing.T, secret uint64) (*Module, map[types.PartyID]transport.ClosableSocket) {
	transp := channel.NewTransport()

	sockets := map[types.PartyID]transport.ClosableSocket{}
	for _, id := range threeParties {
		sock, err := transp.CreateSocket("127.0.0.1:0")
		require.NoError(t, err)
		sockets[id] = sock
	}

	conf := &peer.Configuration{
		Socket:          sockets[1],
		MessageRegistry: standard.NewRegistry(),
		PartyID:         1,
		Peers: map[types.PartyID]string{
			2: sockets[2].GetAddress(),
			3: sockets[3].GetAddress(),
		},
		Threshold:    1,
		Secret:       &secret,
		RoundTimeout: time.Millisecond * 200,
	}

	m, err := NewModule(conf)
	require.NoError(t, err)
	return m, sockets
}

func Test_module_defaults(t *testing.T) {
	m, _ := newTestModule(t, 5)
	require.Equal(t, DefaultPrime, m.conf.Prime)
	require.Equal(t, DefaultWriteTimeout, m.conf.WriteTimeout)
	require.Equal(t, uint64(5), m.GetSecret())
	require.Equal(t, AwaitingShares, m.ShareRoundState())
	require.Equal(t, AwaitingSums, m.SumRoundState())

	_, ok := m.GetResult()
	require.False(t, ok)
}

func Test_module_invalid_configuration(t *testing.T) {
	transp := channel.NewTransport()
	sock, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)

	base := func() *peer.Configuration {
		return &peer.Configuration{
			Socket:          sock,
			MessageRegistry: standard.NewRegistry(),
			PartyID:         1,
			Peers:           map[types.PartyID]string{2: "127.0.0.1:2", 3: "127.0.0.1:3"},
			Threshold:       1,
		}
	}

	conf := base()
	conf.PartyID = 0
	_, err = NewModule(conf)
	require.Error(t, err)

	conf = base()
	conf.Peers[1] = "127.0.0.1:4"
	_, err = NewModule(conf)
	require.Error(t, err)

	conf = base()
	conf.Peers[3] = "127.0.0.1:2"
	_, err = NewModule(conf)
	require.Error(t, err)

	conf = base()
	conf.Peers[128] = "127.0.0.1:5"
	_, err = NewModule(conf)
	require.ErrorIs(t, err, ErrDuplicateID)

	conf = base()
	conf.Threshold = 3
	_, err = NewModule(conf)
	require.Error(t, err)

	conf = base()
	conf.Prime = 100
	_, err = NewModule(conf)
	require.Error(t, err)

	conf = base()
	secret := uint64(127)
	conf.Secret = &secret
	_, err = NewModule(conf)
	require.Error(t, err)
}

func Test_module_communicate_shares(t *testing.T) {
	m, sockets := newTestModule(t, 5)

	err := m.CommunicateShares(context.Background())
	require.NoError(t, err)

	// own share is stored
	shares := m.GetShares()
	require.Len(t, shares, 1)
	require.Equal(t, types.PartyID(1), shares[0].Origin)
	require.Equal(t, uint64(1), shares[0].X)

	points := []Share{{X: Element(shares[0].X), Y: Element(shares[0].Y)}}

	for _, id := range []types.PartyID{2, 3} {
		pkt, err := sockets[id].Recv(time.Second)
		require.NoError(t, err)
		require.Equal(t, "RECEIVE_SHARE", pkt.Msg.Type)

		msg := types.ReceiveShareMessage{}
		require.NoError(t, msg.SetArgs(pkt.Msg.Args))
		require.Equal(t, types.PartyID(1), msg.Sender)
		require.Equal(t, uint64(id), msg.X)

		points = append(points, Share{X: Element(msg.X), Y: Element(msg.Y)})
	}

	secret, err := m.field.Interpolate(points)
	require.NoError(t, err)
	require.Equal(t, Element(5), secret)
}

func Test_module_receive_share_validation(t *testing.T) {
	m, _ := newTestModule(t, 5)
	pkt := transport.Packet{}

	err := m.ProcessReceiveShareMsg(&types.ReceiveShareMessage{Sender: 9, X: 1, Y: 3}, pkt)
	require.ErrorIs(t, err, ErrUnknownParty)

	err = m.ProcessReceiveShareMsg(&types.ReceiveShareMessage{Sender: 2, X: 1, Y: 130}, pkt)
	require.ErrorIs(t, err, types.ErrMalformedCommand)

	// a share for party 1 is evaluated at x = 1
	err = m.ProcessReceiveShareMsg(&types.ReceiveShareMessage{Sender: 2, X: 2, Y: 3}, pkt)
	require.ErrorIs(t, err, types.ErrMalformedCommand)

	require.Empty(t, m.GetShares())

	err = m.ProcessReceiveShareMsg(&types.ReceiveShareMessage{Sender: 2, X: 1, Y: 3}, pkt)
	require.NoError(t, err)
	require.Len(t, m.GetShares(), 1)

	err = m.ProcessReceiveSumMsg(&types.ReceiveSumMessage{Sender: 9, Sum: 3}, pkt)
	require.ErrorIs(t, err, ErrUnknownParty)
	err = m.ProcessReceiveSumMsg(&types.ReceiveSumMessage{Sender: 3, Sum: 127}, pkt)
	require.ErrorIs(t, err, types.ErrMalformedCommand)
	require.Empty(t, m.GetSums())
}

func Test_module_sum_waits_for_every_share(t *testing.T) {
	m, _ := newTestModule(t, 5)
	pkt := transport.Packet{}

	require.NoError(t, m.CommunicateShares(context.Background()))
	require.NoError(t, m.ProcessReceiveShareMsg(&types.ReceiveShareMessage{Sender: 2, X: 1, Y: 10}, pkt))

	_, err := m.SumAndDistribute(context.Background())
	require.ErrorIs(t, err, ErrRoundIncomplete)
	require.Empty(t, m.GetSums())

	require.NoError(t, m.ProcessReceiveShareMsg(&types.ReceiveShareMessage{Sender: 3, X: 1, Y: 20}, pkt))
	require.Equal(t, Ready, m.ShareRoundState())

	own := m.GetShares()[0].Y
	sum, err := m.SumAndDistribute(context.Background())
	require.NoError(t, err)
	require.Equal(t, (own+30)%127, sum)
	require.Len(t, m.GetSums(), 1)
}

func Test_module_duplicate_share_uses_latest(t *testing.T) {
	m, _ := newTestModule(t, 5)
	pkt := transport.Packet{}

	require.NoError(t, m.CommunicateShares(context.Background()))
	require.NoError(t, m.ProcessReceiveShareMsg(&types.ReceiveShareMessage{Sender: 2, X: 1, Y: 10}, pkt))
	require.NoError(t, m.ProcessReceiveShareMsg(&types.ReceiveShareMessage{Sender: 3, X: 1, Y: 20}, pkt))
	require.NoError(t, m.ProcessReceiveShareMsg(&types.ReceiveShareMessage{Sender: 3, X: 1, Y: 50}, pkt))
	require.Len(t, m.GetShares(), 4)

	own := m.GetShares()[0].Y
	sum, err := m.SumAndDistribute(context.Background())
	require.NoError(t, err)
	require.Equal(t, (own+60)%127, sum)
}

func Test_module_give_result(t *testing.T) {
	m, _ := newTestModule(t, 5)
	pkt := transport.Packet{}

	// partial sums of 5 + 3x, the global sum is 5
	require.NoError(t, m.ProcessReceiveSumMsg(&types.ReceiveSumMessage{Sender: 2, Sum: 11}, pkt))

	_, err := m.GiveResult(context.Background())
	require.ErrorIs(t, err, ErrInsufficientPoints)

	require.NoError(t, m.ProcessReceiveSumMsg(&types.ReceiveSumMessage{Sender: 3, Sum: 14}, pkt))

	// party 1 never computed its own sum, t+1 = 2 sums are enough after the
	// round timed out
	result, err := m.GiveResult(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(5), result)

	got, ok := m.GetResult()
	require.True(t, ok)
	require.Equal(t, uint64(5), got)
}

func Test_module_hello(t *testing.T) {
	m, sockets := newTestModule(t, 5)

	addr := sockets[2].GetAddress()
	_, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.ParseUint(portStr, 10, 16)
	require.NoError(t, err)

	header := transport.NewHeader("127.0.0.1:55555", m.conf.Socket.GetAddress())
	err = m.ProcessHelloMsg(&types.HelloMessage{Port: uint16(port)}, transport.Packet{Header: &header})
	require.NoError(t, err)

	require.Equal(t, map[string]types.PartyID{addr: 2}, m.GetHandshakes())
}

func Test_module_set_secret(t *testing.T) {
	m, sockets := newTestModule(t, 5)

	err := m.SetSecret(127)
	require.Error(t, err)
	require.Equal(t, uint64(5), m.GetSecret())

	require.NoError(t, m.SetSecret(9))
	require.Equal(t, uint64(9), m.GetSecret())

	require.NoError(t, m.CommunicateShares(context.Background()))

	own := m.GetShares()[0]
	points := []Share{{X: Element(own.X), Y: Element(own.Y)}}
	for _, id := range []types.PartyID{2, 3} {
		pkt, err := sockets[id].Recv(time.Second)
		require.NoError(t, err)

		msg := types.ReceiveShareMessage{}
		require.NoError(t, msg.SetArgs(pkt.Msg.Args))
		points = append(points, Share{X: Element(msg.X), Y: Element(msg.Y)})
	}

	secret, err := m.field.Interpolate(points)
	require.NoError(t, err)
	require.Equal(t, Element(9), secret)
}

func Test_module_concurrent_sharings_stay_consistent(t *testing.T) {
	m, sockets := newTestModule(t, 5)

	const rounds = 10
	done := make(chan error, rounds)
	for i := 0; i < rounds; i++ {
		go func() {
			done <- m.CommunicateShares(context.Background())
		}()
	}
	for i := 0; i < rounds; i++ {
		require.NoError(t, <-done)
	}

	latest := m.shares.latest()
	require.Len(t, latest, 1)
	points := []Share{{X: Element(latest[0].X), Y: Element(latest[0].Y)}}

	// the last share every peer got belongs to the same sharing as the
	// latest own share
	for _, id := range []types.PartyID{2, 3} {
		var last types.ReceiveShareMessage
		for i := 0; i < rounds; i++ {
			pkt, err := sockets[id].Recv(time.Second)
			require.NoError(t, err)
			require.NoError(t, last.SetArgs(pkt.Msg.Args))
		}
		points = append(points, Share{X: Element(last.X), Y: Element(last.Y)})
	}

	for i := 1; i < len(points); i++ {
		secret, err := m.field.Interpolate([]Share{points[0], points[i]})
		require.NoError(t, err)
		require.Equal(t, Element(5), secret)
	}
}

func Test_module_send_reports_unreachable_parties(t *testing.T) {
	m, sockets := newTestModule(t, 5)
	require.NoError(t, sockets[3].Close())

	err := m.CommunicateShares(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "parties 3")

	// party 2 is still served
	pkt, err := sockets[2].Recv(time.Second)
	require.NoError(t, err)
	require.Equal(t, "RECEIVE_SHARE", pkt.Msg.Type)
}
