package registry

import (
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
)

// ErrUnknownCommand is returned when no callback is registered for a command.
// Unknown commands are dropped without further effect.
var ErrUnknownCommand = xerrors.New("unknown command")

// Exec is the type of function executed when a message is received.
type Exec func(types.Message, transport.Packet) error

// Registry dispatches received packets to the callback registered for their
// command.
type Registry interface {
	// RegisterMessageCallback registers exec for messages of the same name as
	// m. A second registration for the same name replaces the first one.
	RegisterMessageCallback(m types.Message, exec Exec)

	// ProcessPacket parses the packet's message and runs its callback.
	ProcessPacket(pkt transport.Packet) error

	// MarshalMessage returns the transport form of a message.
	MarshalMessage(m types.Message) (transport.Message, error)

	// UnmarshalMessage parses a transport message into its registered type.
	UnmarshalMessage(msg *transport.Message) (types.Message, error)
}
