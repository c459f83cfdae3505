package standard

import (
	"sync"

	"go.dedis.ch/mpcsum/registry"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
)

// NewRegistry returns a new initialized registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[string]handler{},
	}
}

type handler struct {
	template types.Message
	exec     registry.Exec
}

// Registry implements a standard registry.
//
// - implements registry.Registry
type Registry struct {
	sync.RWMutex
	handlers map[string]handler
}

// RegisterMessageCallback implements registry.Registry
func (r *Registry) RegisterMessageCallback(m types.Message, exec registry.Exec) {
	r.Lock()
	defer r.Unlock()
	r.handlers[m.Name()] = handler{template: m, exec: exec}
}

// ProcessPacket implements registry.Registry
func (r *Registry) ProcessPacket(pkt transport.Packet) error {
	if pkt.Msg == nil {
		return xerrors.Errorf("packet without message")
	}

	r.RLock()
	h, ok := r.handlers[pkt.Msg.Type]
	r.RUnlock()
	if !ok {
		return xerrors.Errorf("%q: %w", pkt.Msg.Type, registry.ErrUnknownCommand)
	}

	msg := h.template.NewEmpty()
	err := msg.SetArgs(pkt.Msg.Args)
	if err != nil {
		return err
	}

	return h.exec(msg, pkt)
}

// MarshalMessage implements registry.Registry
func (r *Registry) MarshalMessage(m types.Message) (transport.Message, error) {
	if m == nil {
		return transport.Message{}, xerrors.Errorf("nil message")
	}
	return transport.Message{Type: m.Name(), Args: m.Args()}, nil
}

// UnmarshalMessage implements registry.Registry
func (r *Registry) UnmarshalMessage(msg *transport.Message) (types.Message, error) {
	r.RLock()
	h, ok := r.handlers[msg.Type]
	r.RUnlock()
	if !ok {
		return nil, xerrors.Errorf("%q: %w", msg.Type, registry.ErrUnknownCommand)
	}

	m := h.template.NewEmpty()
	err := m.SetArgs(msg.Args)
	if err != nil {
		return nil, err
	}
	return m, nil
}
