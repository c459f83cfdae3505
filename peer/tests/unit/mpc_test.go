package unit

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	z "go.dedis.ch/mpcsum/internal/testing"
	"go.dedis.ch/mpcsum/peer"
	"go.dedis.ch/mpcsum/peer/impl/mpc"
	"go.dedis.ch/mpcsum/registry/standard"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/transport/channel"
	"go.dedis.ch/mpcsum/transport/tcp"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/sync/errgroup"
)

// runSummation drives every round from the API of each party, rounds of all
// parties running concurrently.
func runSummation(t *testing.T, nodes []z.TestNode) []uint64 {
	ctx := context.Background()

	g := errgroup.Group{}
	for _, node := range nodes {
		node := node
		g.Go(func() error { return node.CommunicateShares(ctx) })
	}
	require.NoError(t, g.Wait())

	for _, node := range nodes {
		node := node
		g.Go(func() error {
			_, err := node.SumAndDistribute(ctx)
			return err
		})
	}
	require.NoError(t, g.Wait())

	results := make([]uint64, len(nodes))
	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			res, err := node.GiveResult(ctx)
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	return results
}

// 3 parties with secrets 10, 20, 30 agree on 60
func Test_MPC_Sum_Three_Parties(t *testing.T) {
	transp := channel.NewTransport()
	nodes := z.NewTestNodes(t, peerFac, transp, 3, z.WithSecrets(10, 20, 30))
	defer z.StopAll(nodes)

	results := runSummation(t, nodes)
	require.Equal(t, []uint64{60, 60, 60}, results)

	for _, node := range nodes {
		// own share and one from each peer
		require.Len(t, node.GetShares(), 3)
		require.Len(t, node.GetSums(), 3)

		res, ok := node.GetResult()
		require.True(t, ok)
		require.Equal(t, uint64(60), res)
	}
}

func Test_MPC_Sum_Wraps_Around_Field(t *testing.T) {
	transp := channel.NewTransport()
	nodes := z.NewTestNodes(t, peerFac, transp, 3, z.WithSecrets(100, 100, 100))
	defer z.StopAll(nodes)

	results := runSummation(t, nodes)
	for _, res := range results {
		require.Equal(t, uint64(300%127), res)
	}
}

func Test_MPC_Sum_Random_Secrets(t *testing.T) {
	transp := channel.NewTransport()
	nodes := z.NewTestNodes(t, peerFac, transp, 5, z.WithThreshold(2))
	defer z.StopAll(nodes)

	expected := uint64(0)
	for _, node := range nodes {
		expected = (expected + node.GetSecret()) % mpc.DefaultPrime
	}

	results := runSummation(t, nodes)
	for _, res := range results {
		require.Equal(t, expected, res)
	}
}

func Test_MPC_Sum_Larger_Prime(t *testing.T) {
	transp := channel.NewTransport()
	nodes := z.NewTestNodes(t, peerFac, transp, 4,
		z.WithPrime(1000003), z.WithSecrets(500000, 400000, 300000, 2))
	defer z.StopAll(nodes)

	results := runSummation(t, nodes)
	for _, res := range results {
		require.Equal(t, uint64(1200002-1000003), res)
	}
}

// the round waits for late shares instead of summing a partial store
func Test_MPC_Sum_Waits_For_Late_Shares(t *testing.T) {
	transp := channel.NewTransport()
	nodes := z.NewTestNodes(t, peerFac, transp, 3, z.WithSecrets(1, 2, 3))
	defer z.StopAll(nodes)

	ctx := context.Background()
	require.NoError(t, nodes[0].CommunicateShares(ctx))
	require.NoError(t, nodes[1].CommunicateShares(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := nodes[0].SumAndDistribute(ctx)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("sum must wait for the share of party 3")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, nodes[2].CommunicateShares(ctx))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sum must proceed once every share arrived")
	}
}

func Test_MPC_Sum_Round_Timeout(t *testing.T) {
	transp := channel.NewTransport()
	nodes := z.NewTestNodes(t, peerFac, transp, 3,
		z.WithSecrets(1, 2, 3), z.WithRoundTimeout(100*time.Millisecond))
	defer z.StopAll(nodes)

	ctx := context.Background()
	require.NoError(t, nodes[0].CommunicateShares(ctx))

	_, err := nodes[0].SumAndDistribute(ctx)
	require.ErrorIs(t, err, mpc.ErrRoundIncomplete)

	_, err = nodes[0].GiveResult(ctx)
	require.ErrorIs(t, err, mpc.ErrInsufficientPoints)

	_, ok := nodes[0].GetResult()
	require.False(t, ok)
}

// commands are injected on the socket as an operator would do
func Test_MPC_Sum_Driven_By_Commands(t *testing.T) {
	transp := channel.NewTransport()
	nodes := z.NewTestNodes(t, peerFac, transp, 3, z.WithSecrets(4, 5, 6))
	defer z.StopAll(nodes)

	operator, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer operator.Close()

	inject := func(line string) {
		for _, node := range nodes {
			msg, ok := transport.DecodeMessage(line)
			require.True(t, ok)
			err := operator.Send(node.GetAddr(), transport.Packet{Msg: &msg}, time.Second)
			require.NoError(t, err)
		}
	}

	// noise first: unknown and malformed commands are dropped
	inject("DANCE")
	inject("RECEIVE_SHARE 1 x y")

	inject("COMMUNICATE_SHARES")
	inject("SUM_AND_DISTRIBUTE")
	inject("GIVE_RESULT")

	require.Eventually(t, func() bool {
		for _, node := range nodes {
			res, ok := node.GetResult()
			if !ok || res != 15 {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	inject("SHOW_SHARES")
	inject("SHOW_SUMS")
}

func Test_MPC_Repeated_Commands_Keep_Latest(t *testing.T) {
	transp := channel.NewTransport()
	nodes := z.NewTestNodes(t, peerFac, transp, 3, z.WithSecrets(7, 8, 9))
	defer z.StopAll(nodes)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		for _, node := range nodes {
			require.NoError(t, node.CommunicateShares(ctx))
		}
	}

	// every share is kept, duplicates included
	require.Eventually(t, func() bool {
		for _, node := range nodes {
			if len(node.GetShares()) != 6 {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	wg := sync.WaitGroup{}
	for _, node := range nodes {
		wg.Add(1)
		go func(node z.TestNode) {
			defer wg.Done()
			_, err := node.SumAndDistribute(ctx)
			require.NoError(t, err)
		}(node)
	}
	wg.Wait()

	for _, node := range nodes {
		res, err := node.GiveResult(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(24), res)
	}
}

func Test_MPC_Sum_Over_TCP(t *testing.T) {
	transp := tcp.NewTCP(tcp.WithBackoff(tcp.BackoffPolicy{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
	}))
	nodes := z.NewTestNodes(t, peerFac, transp, 3, z.WithSecrets(10, 20, 30))
	defer z.StopAll(nodes)

	results := runSummation(t, nodes)
	require.Equal(t, []uint64{60, 60, 60}, results)

	// every party received a handshake from each peer
	for _, node := range nodes {
		hellos := 0
		for _, pkt := range node.GetIns() {
			if pkt.Msg.Type == (types.HelloMessage{}).Name() {
				hellos++
			}
		}
		require.Equal(t, 2, hellos)
	}
}

// a peer that never comes up must not hold back delivery to the live ones
func Test_MPC_Dead_Peer_Does_Not_Delay_Others(t *testing.T) {
	transp := tcp.NewTCP(tcp.WithBackoff(tcp.BackoffPolicy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
		MaxElapsedTime:  3 * time.Second,
	}))

	sock, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer sock.Close()
	live, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer live.Close()

	// a closed listener leaves an address nobody answers on
	dead, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.GetAddress()
	require.NoError(t, dead.Close())

	secret := uint64(7)
	node, err := peerFac(peer.Configuration{
		Socket:          sock,
		MessageRegistry: standard.NewRegistry(),
		PartyID:         1,
		Peers:           map[types.PartyID]string{2: live.GetAddress(), 3: deadAddr},
		Threshold:       1,
		Secret:          &secret,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- node.CommunicateShares(context.Background())
	}()

	deadline := time.Now().Add(time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "share for the live peer was held back")
		pkt, err := live.Recv(time.Until(deadline))
		require.NoError(t, err)
		if pkt.Msg.Type == (types.ReceiveShareMessage{}).Name() {
			require.Equal(t, []string{"1", "2"}, pkt.Msg.Args[:2])
			break
		}
	}

	select {
	case err := <-done:
		require.ErrorIs(t, err, tcp.ErrDeliveryFailed)
	case <-time.After(10 * time.Second):
		t.Fatal("sharing must give up on the dead peer")
	}
}

// records sent on one stream are stored in the order they were written
func Test_MPC_Stream_Order_Over_TCP(t *testing.T) {
	transp := tcp.NewTCP(tcp.WithBackoff(tcp.BackoffPolicy{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
	}))
	nodes := z.NewTestNodes(t, peerFac, transp, 2, z.WithSecrets(1, 2), z.WithThreshold(0))
	defer z.StopAll(nodes)

	sender := nodes[1].GetConfig().Socket
	const count = 100
	for i := 0; i < count; i++ {
		msg := transport.Message{Type: "RECEIVE_SHARE", Args: []string{"2", "1", strconv.Itoa(i)}}
		err := sender.Send(nodes[0].GetAddr(), transport.Packet{Msg: &msg}, time.Second)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return len(nodes[0].GetShares()) == count
	}, 5*time.Second, 10*time.Millisecond)

	for i, rec := range nodes[0].GetShares() {
		require.Equal(t, uint64(i), rec.Y)
	}
}

func Test_MPC_Invalid_Configuration(t *testing.T) {
	transp := channel.NewTransport()
	nodes := z.NewTestNodes(t, peerFac, transp, 2, z.WithAutostart(false), z.WithoutConnect())
	defer z.StopAll(nodes)

	conf := nodes[0].GetConfig()
	conf.Threshold = 2
	_, err := peerFac(conf)
	require.Error(t, err)

	conf = nodes[0].GetConfig()
	conf.Socket = nil
	_, err = peerFac(conf)
	require.Error(t, err)
}
