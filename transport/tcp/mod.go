package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcsum/metrics"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const (
	maxLineSize = 64 * 1024
	inboxSize   = 1024

	defaultDialTimeout = 3 * time.Second
)

var (
	// ErrConnectionUnavailable is returned when a peer could not be reached
	// within the backoff policy.
	ErrConnectionUnavailable = xerrors.New("connection unavailable")

	// ErrDeliveryFailed is returned when a command could not be written to a
	// peer, even after reconnecting.
	ErrDeliveryFailed = xerrors.New("delivery failed")

	errSocketClosed = xerrors.New("socket closed")
)

// Option configures the TCP transport.
type Option func(*TCP)

// WithBackoff sets the policy used to (re)connect to peers.
func WithBackoff(policy BackoffPolicy) Option {
	return func(t *TCP) {
		t.policy = policy
	}
}

// WithDialTimeout bounds a single connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(t *TCP) {
		t.dialTimeout = d
	}
}

// NewTCP returns a new tcp transport implementation.
func NewTCP(opts ...Option) transport.Transport {
	t := &TCP{
		policy:      DefaultBackoffPolicy(),
		dialTimeout: defaultDialTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TCP implements a transport layer using long-lived TCP streams carrying
// newline delimited commands.
//
// - implements transport.Transport
type TCP struct {
	policy      BackoffPolicy
	dialTimeout time.Duration
}

func checkValidAddr(address string) bool {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return false
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		return false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return false
	}
	return port >= 0 && port <= 65535
}

// CreateSocket implements transport.Transport. It starts accepting inbound
// streams right away.
func (t *TCP) CreateSocket(address string) (transport.ClosableSocket, error) {
	if !checkValidAddr(address) {
		return nil, xerrors.Errorf("Invalid address %s", address)
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	address = listener.Addr().String()

	_, port, err := net.SplitHostPort(address)
	if err != nil {
		listener.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Socket{
		listener: listener,
		myAddr:   address,
		conns:    newConnRegistry(port, t.policy, t.dialTimeout),
		inbox:    make(chan transport.Packet, inboxSize),
		inbound:  map[net.Conn]struct{}{},
		ctx:      ctx,
		cancel:   cancel,
	}

	s.wg.Add(1)
	go s.acceptLoop()

	log.Info().Str("addr", address).Msg("listening")
	return s, nil
}

// Socket implements a network socket using TCP. Outbound commands go through
// one persistent stream per peer; every accepted stream is served by its own
// goroutine until the peer hangs up.
//
// - implements transport.Socket
// - implements transport.ClosableSocket
// - implements transport.Connector
type Socket struct {
	listener net.Listener
	myAddr   string
	conns    *connRegistry
	inbox    chan transport.Packet

	inboundMu sync.Mutex
	inbound   map[net.Conn]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once

	ins  packets
	outs packets
}

// ConnectAll implements transport.Connector. It connects to every peer
// concurrently and fails if one of them stays unreachable.
func (s *Socket) ConnectAll(ctx context.Context, peers []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, addr := range peers {
		addr := addr
		if addr == s.myAddr {
			continue
		}
		g.Go(func() error {
			return s.conns.ensure(ctx, addr)
		})
	}
	return g.Wait()
}

// Connected tells if an outbound stream to addr is open.
func (s *Socket) Connected(addr string) bool {
	return s.conns.connected(addr)
}

// Close implements transport.Socket. It returns an error if already closed.
func (s *Socket) Close() error {
	err := xerrors.Errorf("Socket already closed.")
	s.closeOnce.Do(func() {
		err = nil
		s.cancel()
		s.listener.Close()
		s.conns.closeAll()

		s.inboundMu.Lock()
		for conn := range s.inbound {
			conn.Close()
		}
		s.inboundMu.Unlock()

		s.wg.Wait()
	})
	return err
}

// Send implements transport.Socket
func (s *Socket) Send(dest string, pkt transport.Packet, timeout time.Duration) error {
	if !checkValidAddr(dest) {
		return xerrors.Errorf("Invalid address %s", dest)
	}
	if pkt.Msg == nil {
		return xerrors.Errorf("empty packet")
	}
	if s.ctx.Err() != nil {
		return errSocketClosed
	}

	line := []byte(pkt.Msg.Encode() + "\n")
	err := s.conns.write(s.ctx, dest, line, timeout)
	if err != nil {
		return err
	}

	s.outs.add(pkt)
	return nil
}

// Recv implements transport.Socket. It blocks until a packet is received, or
// the timeout is reached. In the case the timeout is reached, return a
// TimeoutErr.
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
	case <-s.ctx.Done():
		return transport.Packet{}, errSocketClosed
	}
}

// GetAddress implements transport.Socket. It returns the address assigned. Can
// be useful in the case one provided a :0 address, which makes the system use a
// random free port.
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

func (s *Socket) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.inboundMu.Lock()
		if s.ctx.Err() != nil {
			s.inboundMu.Unlock()
			conn.Close()
			return
		}
		s.inbound[conn] = struct{}{}
		s.inboundMu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

// serve reads commands from one inbound stream until it is closed. A HELLO
// attributes the stream to the listening address of the sender.
func (s *Socket) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.inboundMu.Lock()
		delete(s.inbound, conn)
		s.inboundMu.Unlock()
		conn.Close()
	}()

	stream := xid.New().String()
	source := conn.RemoteAddr().String()
	remoteHost, _, _ := net.SplitHostPort(source)

	metrics.InboundStreams.Inc()
	defer metrics.InboundStreams.Dec()

	logger := log.With().Str("stream", stream).Str("remote", source).Logger()
	logger.Debug().Msg("stream opened")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for scanner.Scan() {
		msg, ok := transport.DecodeMessage(scanner.Text())
		if !ok {
			continue
		}

		if msg.Type == (types.HelloMessage{}).Name() && len(msg.Args) == 1 {
			_, err := strconv.ParseUint(msg.Args[0], 10, 16)
			if err == nil {
				source = net.JoinHostPort(remoteHost, msg.Args[0])
				logger = logger.With().Str("peer", source).Logger()
			}
		}

		pkt := transport.Packet{
			Header: &transport.Header{
				PacketID:    xid.New().String(),
				Source:      source,
				Destination: s.myAddr,
				Stream:      stream,
			},
			Msg: &msg,
		}

		select {
		case s.inbox <- pkt:
		case <-s.ctx.Done():
			return
		}
	}

	err := scanner.Err()
	if err != nil && s.ctx.Err() == nil && !isClosedErr(err) {
		logger.Warn().Err(err).Msg("stream read failed")
		return
	}
	logger.Debug().Msg("stream closed")
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "connection reset")
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
