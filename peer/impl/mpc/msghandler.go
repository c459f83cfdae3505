package mpc

import (
	"net"
	"strconv"

	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
)

// ProcessHelloMsg records the handshake of a peer.
func (m *Module) ProcessHelloMsg(msg types.Message, pkt transport.Packet) error {
	helloMsg, ok := msg.(*types.HelloMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	addr := pkt.Header.Source
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		addr = net.JoinHostPort(host, strconv.Itoa(int(helloMsg.Port)))
	}

	id := m.byAddr[addr]
	m.handshakes.add(addr, id)

	if id == 0 {
		log.Info().Msgf("party %d: received greetings from %s, not a party of this run", m.conf.PartyID, addr)
		return nil
	}
	log.Info().Msgf("party %d: received greetings from party %d (%s)", m.conf.PartyID, id, addr)
	return nil
}

// ProcessCommunicateSharesMsg triggers the share distribution.
func (m *Module) ProcessCommunicateSharesMsg(msg types.Message, pkt transport.Packet) error {
	_, ok := msg.(*types.CommunicateSharesMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	return m.CommunicateShares(m.baseCtx())
}

// ProcessReceiveShareMsg stores a share sent by a peer.
func (m *Module) ProcessReceiveShareMsg(msg types.Message, pkt transport.Packet) error {
	shareMsg, ok := msg.(*types.ReceiveShareMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	if !m.isParty(shareMsg.Sender) {
		return xerrors.Errorf("share from %d: %w", shareMsg.Sender, ErrUnknownParty)
	}

	x, err := m.field.Element(shareMsg.X)
	if err != nil {
		return xerrors.Errorf("share from %d: %v: %w", shareMsg.Sender, err, types.ErrMalformedCommand)
	}
	y, err := m.field.Element(shareMsg.Y)
	if err != nil {
		return xerrors.Errorf("share from %d: %v: %w", shareMsg.Sender, err, types.ErrMalformedCommand)
	}

	// a share for this party is evaluated at its own id
	expected := m.field.FromUint64(uint64(m.conf.PartyID))
	if x != expected {
		return xerrors.Errorf("share from %d evaluated at x = %s, expected %s: %w",
			shareMsg.Sender, x, expected, types.ErrMalformedCommand)
	}

	log.Debug().Msgf("party %d: received share from %d", m.conf.PartyID, shareMsg.Sender)

	m.storeShare(types.ShareRecord{Origin: shareMsg.Sender, X: uint64(x), Y: uint64(y)})
	return nil
}

// ProcessSumAndDistributeMsg triggers the partial sum round.
func (m *Module) ProcessSumAndDistributeMsg(msg types.Message, pkt transport.Packet) error {
	_, ok := msg.(*types.SumAndDistributeMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	_, err := m.SumAndDistribute(m.baseCtx())
	return err
}

// ProcessReceiveSumMsg stores a partial sum sent by a peer.
func (m *Module) ProcessReceiveSumMsg(msg types.Message, pkt transport.Packet) error {
	sumMsg, ok := msg.(*types.ReceiveSumMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	if !m.isParty(sumMsg.Sender) {
		return xerrors.Errorf("sum from %d: %w", sumMsg.Sender, ErrUnknownParty)
	}

	sum, err := m.field.Element(sumMsg.Sum)
	if err != nil {
		return xerrors.Errorf("sum from %d: %v: %w", sumMsg.Sender, err, types.ErrMalformedCommand)
	}

	log.Debug().Msgf("party %d: received partial sum from %d", m.conf.PartyID, sumMsg.Sender)

	m.storeSum(types.SumRecord{Origin: sumMsg.Sender, Sum: uint64(sum)})
	return nil
}

// ProcessGiveResultMsg reconstructs the global sum.
func (m *Module) ProcessGiveResultMsg(msg types.Message, pkt transport.Packet) error {
	_, ok := msg.(*types.GiveResultMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	_, err := m.GiveResult(m.baseCtx())
	return err
}

// ProcessShowSharesMsg logs the share store.
func (m *Module) ProcessShowSharesMsg(msg types.Message, pkt transport.Packet) error {
	_, ok := msg.(*types.ShowSharesMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	records := m.shares.getAll()
	log.Info().Msgf("party %d: %d shares (%s): %v", m.conf.PartyID, len(records), m.shareRound.state(), records)
	return nil
}

// ProcessShowSumsMsg logs the sum store.
func (m *Module) ProcessShowSumsMsg(msg types.Message, pkt transport.Packet) error {
	_, ok := msg.(*types.ShowSumsMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	records := m.sums.getAll()
	log.Info().Msgf("party %d: %d sums (%s): %v", m.conf.PartyID, len(records), m.sumRound.state(), records)
	return nil
}
