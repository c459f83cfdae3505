package impl

import (
	"context"

	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
)

// background lists the commands that may wait for a round or on the network.
// They run on their own goroutine, every other command is handled in arrival
// order so records from one stream are stored in the order they were sent.
var background = map[string]bool{
	types.CommunicateSharesMessage{}.Name(): true,
	types.SumAndDistributeMessage{}.Name():  true,
	types.GiveResultMessage{}.Name():        true,
}

// MessagingDaemon starts a new loop to listen to the commands.
func (n *node) MessagingDaemon(ctx context.Context) {
	n.daemon.Add(1)

	go func() {
		defer n.daemon.Done()
		for {
			select {
			case <-ctx.Done():
				// use context to determine when to stop the goroutine
				return
			default:
				pkt, err := n.conf.Socket.Recv(ReadTimeout)
				if err != nil {
					continue
				}
				n.dispatch(pkt)
			}
		}
	}()
}

func (n *node) dispatch(pkt transport.Packet) {
	if pkt.Msg == nil || !background[pkt.Msg.Type] {
		n.ProcessPkt(pkt)
		return
	}

	n.handlers.Add(1)
	go func() {
		defer n.handlers.Done()
		n.ProcessPkt(pkt)
	}()
}
