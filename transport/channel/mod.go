package channel

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.dedis.ch/mpcsum/transport"
	"golang.org/x/xerrors"
)

const inboxSize = 1024

// NewTransport returns an in-memory transport. Sockets created from the same
// transport can reach each other.
func NewTransport() transport.Transport {
	return &Transport{
		incomings: map[string]chan transport.Packet{},
	}
}

// Transport implements an in-memory transport, useful for tests.
//
// - implements transport.Transport
type Transport struct {
	sync.RWMutex
	incomings map[string]chan transport.Packet
	lastPort  int
}

// CreateSocket implements transport.Transport. An address ending with ":0"
// gets a free port assigned.
func (t *Transport) CreateSocket(address string) (transport.ClosableSocket, error) {
	t.Lock()
	defer t.Unlock()

	if strings.HasSuffix(address, ":0") {
		t.lastPort++
		address = fmt.Sprintf("%s%s", strings.TrimSuffix(address, "0"), strconv.Itoa(t.lastPort))
	}

	_, found := t.incomings[address]
	if found {
		return nil, xerrors.Errorf("address %s already in use", address)
	}

	inbox := make(chan transport.Packet, inboxSize)
	t.incomings[address] = inbox

	return &Socket{
		transport: t,
		myAddr:    address,
		inbox:     inbox,
	}, nil
}

func (t *Transport) inbox(address string) (chan transport.Packet, bool) {
	t.RLock()
	defer t.RUnlock()
	inbox, ok := t.incomings[address]
	return inbox, ok
}

// Socket is an in-memory socket.
//
// - implements transport.Socket
// - implements transport.ClosableSocket
type Socket struct {
	transport *Transport
	myAddr    string
	inbox     chan transport.Packet

	ins  packets
	outs packets
}

// Close implements transport.ClosableSocket
func (s *Socket) Close() error {
	s.transport.Lock()
	defer s.transport.Unlock()

	_, found := s.transport.incomings[s.myAddr]
	if !found {
		return xerrors.Errorf("socket %s already closed", s.myAddr)
	}
	delete(s.transport.incomings, s.myAddr)
	return nil
}

// Send implements transport.Socket
func (s *Socket) Send(dest string, pkt transport.Packet, timeout time.Duration) error {
	inbox, ok := s.transport.inbox(dest)
	if !ok {
		return xerrors.Errorf("%s is not reachable", dest)
	}

	pkt = pkt.Copy()
	if pkt.Header == nil {
		h := transport.NewHeader(s.myAddr, dest)
		pkt.Header = &h
	}
	pkt.Header.Source = s.myAddr
	pkt.Header.Destination = dest

	var deadline <-chan time.Time
	if timeout != 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case inbox <- pkt:
	case <-deadline:
		return transport.TimeoutError(timeout)
	}

	s.outs.add(pkt)
	return nil
}

// Recv implements transport.Socket
func (s *Socket) Recv(timeout time.Duration) (transport.Packet, error) {
	var deadline <-chan time.Time
	if timeout != 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case pkt := <-s.inbox:
		s.ins.add(pkt)
		return pkt, nil
	case <-deadline:
		return transport.Packet{}, transport.TimeoutError(timeout)
	}
}

// GetAddress implements transport.Socket
func (s *Socket) GetAddress() string {
	return s.myAddr
}

// GetIns implements transport.Socket
func (s *Socket) GetIns() []transport.Packet {
	return s.ins.getAll()
}

// GetOuts implements transport.Socket
func (s *Socket) GetOuts() []transport.Packet {
	return s.outs.getAll()
}

type packets struct {
	sync.Mutex
	data []transport.Packet
}

func (p *packets) add(pkt transport.Packet) {
	p.Lock()
	defer p.Unlock()

	p.data = append(p.data, pkt.Copy())
}

func (p *packets) getAll() []transport.Packet {
	p.Lock()
	defer p.Unlock()

	res := make([]transport.Packet, len(p.data))

	for i, pkt := range p.data {
		res[i] = pkt.Copy()
	}

	return res
}
