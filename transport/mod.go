package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
)

// Transport creates sockets.
type Transport interface {
	CreateSocket(address string) (ClosableSocket, error)
}

// Socket describes the primitives to send and receive packets.
type Socket interface {
	// Send sends pkt to dest. A zero timeout means no write deadline.
	Send(dest string, pkt Packet, timeout time.Duration) error

	// Recv blocks until a packet is received or the timeout is reached, in
	// which case it returns a TimeoutError. A zero timeout blocks forever.
	Recv(timeout time.Duration) (Packet, error)

	// GetAddress returns the address the socket is bound to.
	GetAddress() string

	// GetIns returns all the packets received so far.
	GetIns() []Packet

	// GetOuts returns all the packets sent so far.
	GetOuts() []Packet
}

// ClosableSocket is a socket that can be closed.
type ClosableSocket interface {
	Socket
	Close() error
}

// Connector is implemented by sockets that keep long-lived connections to a
// known set of peers and can establish them up front.
type Connector interface {
	ConnectAll(ctx context.Context, peers []string) error
}

// Packet is the unit exchanged between sockets.
type Packet struct {
	Header *Header
	Msg    *Message
}

// Copy returns a deep copy of the packet.
func (p Packet) Copy() Packet {
	var h *Header
	if p.Header != nil {
		hc := *p.Header
		h = &hc
	}
	var m *Message
	if p.Msg != nil {
		mc := p.Msg.Copy()
		m = &mc
	}
	return Packet{Header: h, Msg: m}
}

// String implements fmt.Stringer
func (p Packet) String() string {
	var b strings.Builder
	if p.Header != nil {
		b.WriteString(p.Header.String())
	}
	if p.Msg != nil {
		b.WriteString(" ")
		b.WriteString(p.Msg.Encode())
	}
	return b.String()
}

// Header contains the metadata of a packet. Source is the address the sender
// listens on when known, otherwise the remote address of the stream.
type Header struct {
	PacketID    string
	Source      string
	Destination string
	// Stream identifies the connection the packet arrived on.
	Stream string
}

// NewHeader returns a header with a fresh packet id.
func NewHeader(source, dest string) Header {
	return Header{
		PacketID:    xid.New().String(),
		Source:      source,
		Destination: dest,
	}
}

// String implements fmt.Stringer
func (h Header) String() string {
	return fmt.Sprintf("[%s %s -> %s]", h.PacketID, h.Source, h.Destination)
}

// Message is a command as it travels on the wire: a keyword followed by
// whitespace separated arguments, one command per line.
type Message struct {
	Type string
	Args []string
}

// Copy returns a deep copy of the message.
func (m Message) Copy() Message {
	args := make([]string, len(m.Args))
	copy(args, m.Args)
	return Message{Type: m.Type, Args: args}
}

// Encode returns the single line form of the message, without the trailing
// newline.
func (m Message) Encode() string {
	if len(m.Args) == 0 {
		return m.Type
	}
	return m.Type + " " + strings.Join(m.Args, " ")
}

// DecodeMessage tokenizes a line on whitespace. It returns false for blank
// lines.
func DecodeMessage(line string) (Message, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Message{}, false
	}
	return Message{Type: fields[0], Args: fields[1:]}, true
}

// TimeoutError is returned when a timeout is reached.
type TimeoutError time.Duration

// Error implements error.
func (err TimeoutError) Error() string {
	return fmt.Sprintf("timeout reached after %s", time.Duration(err))
}
