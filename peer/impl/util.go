package impl

import (
	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcsum/metrics"
	"go.dedis.ch/mpcsum/registry"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
)

// ProcessPkt processes a received packet. Errors stay local to the command:
// they are logged and counted, never propagated.
func (n *node) ProcessPkt(pkt transport.Packet) error {
	if pkt.Msg == nil {
		return nil
	}

	err := n.conf.MessageRegistry.ProcessPacket(pkt)
	command := pkt.Msg.Type

	switch {
	case err == nil:
		metrics.RecordCommand(command, metrics.OutcomeOK)
	case xerrors.Is(err, registry.ErrUnknownCommand):
		// free-form keywords would blow up the label cardinality
		metrics.RecordCommand("unrecognized", metrics.OutcomeUnknown)
		log.Debug().Str("source", pkt.Header.Source).Msgf("party %d: ignoring %s", n.conf.PartyID, err)
	case xerrors.Is(err, types.ErrMalformedCommand):
		metrics.RecordCommand(command, metrics.OutcomeMalformed)
		log.Warn().Str("source", pkt.Header.Source).Err(err).Msgf("party %d: dropping malformed command", n.conf.PartyID)
	default:
		metrics.RecordCommand(command, metrics.OutcomeError)
		log.Error().Str("source", pkt.Header.Source).Err(err).Msgf("party %d: %s failed", n.conf.PartyID, command)
	}

	return err
}
