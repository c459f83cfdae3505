package tcp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcsum/metrics"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
)

// peerConn is the long-lived outbound stream to one peer. The lock is held for
// a single write, never across a dial.
type peerConn struct {
	sync.Mutex
	addr string
	conn net.Conn
}

// connRegistry keeps one outbound connection per peer address.
type connRegistry struct {
	*sync.RWMutex
	conns map[string]*peerConn

	localPort   string
	policy      BackoffPolicy
	dialTimeout time.Duration
}

func newConnRegistry(localPort string, policy BackoffPolicy, dialTimeout time.Duration) *connRegistry {
	return &connRegistry{
		RWMutex:     &sync.RWMutex{},
		conns:       map[string]*peerConn{},
		localPort:   localPort,
		policy:      policy,
		dialTimeout: dialTimeout,
	}
}

// get returns the entry for addr, creating an empty one if needed.
func (r *connRegistry) get(addr string) *peerConn {
	r.RLock()
	pc, ok := r.conns[addr]
	r.RUnlock()
	if ok {
		return pc
	}

	r.Lock()
	defer r.Unlock()
	pc, ok = r.conns[addr]
	if !ok {
		pc = &peerConn{addr: addr}
		r.conns[addr] = pc
	}
	return pc
}

// connected tells if a live connection to addr is registered.
func (r *connRegistry) connected(addr string) bool {
	r.RLock()
	pc, ok := r.conns[addr]
	r.RUnlock()
	if !ok {
		return false
	}
	pc.Lock()
	defer pc.Unlock()
	return pc.conn != nil
}

// ensure connects to addr unless a connection already exists.
func (r *connRegistry) ensure(ctx context.Context, addr string) error {
	_, err := r.conn(ctx, r.get(addr))
	return err
}

// conn returns the live connection of pc, dialing one if there is none. The
// dial runs without the peer lock, if another caller registered a connection
// meanwhile that one is kept.
func (r *connRegistry) conn(ctx context.Context, pc *peerConn) (net.Conn, error) {
	pc.Lock()
	conn := pc.conn
	pc.Unlock()
	if conn != nil {
		return conn, nil
	}

	conn, err := r.connect(ctx, pc.addr)
	if err != nil {
		return nil, err
	}

	pc.Lock()
	defer pc.Unlock()
	if pc.conn != nil {
		conn.Close()
		return pc.conn, nil
	}
	pc.conn = conn
	return conn, nil
}

// write sends one line to addr. A missing or broken connection is dropped and
// re-established once before the delivery is reported as failed. The peer
// lock only covers the write itself.
func (r *connRegistry) write(ctx context.Context, addr string, line []byte, timeout time.Duration) error {
	pc := r.get(addr)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := r.conn(ctx, pc)
		if err != nil {
			return xerrors.Errorf("%s: %v: %w", addr, err, ErrDeliveryFailed)
		}

		pc.Lock()
		err = writeLine(conn, line, timeout)
		if err != nil && pc.conn == conn {
			pc.conn = nil
		}
		pc.Unlock()

		if err == nil {
			return nil
		}

		log.Warn().Str("peer", addr).Err(err).Msg("write failed, dropping connection")
		metrics.SendFailures.WithLabelValues(addr).Inc()
		conn.Close()
		lastErr = err
	}

	return xerrors.Errorf("%s: %v: %w", addr, lastErr, ErrDeliveryFailed)
}

// connect dials addr with the backoff policy and sends the HELLO handshake.
func (r *connRegistry) connect(ctx context.Context, addr string) (net.Conn, error) {
	hello := transport.Message{Type: types.HelloMessage{}.Name(), Args: []string{r.localPort}}
	line := []byte(hello.Encode() + "\n")

	var conn net.Conn
	attempts := 0

	operation := func() error {
		attempts++
		dialer := net.Dialer{Timeout: r.dialTimeout}
		c, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		err = writeLine(c, line, r.dialTimeout)
		if err != nil {
			c.Close()
			return err
		}
		conn = c
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.ConnectRetries.WithLabelValues(addr).Inc()
		log.Debug().Str("peer", addr).Err(err).Msgf("connect failed, retrying in %s", wait)
	}

	err := backoff.RetryNotify(operation, r.policy.newBackOff(ctx), notify)
	if err != nil {
		return nil, xerrors.Errorf("%s after %d attempts: %v: %w", addr, attempts, err, ErrConnectionUnavailable)
	}

	log.Info().Str("peer", addr).Int("attempts", attempts).Msg("connected")
	return conn, nil
}

// closeAll closes every outbound connection.
func (r *connRegistry) closeAll() {
	r.Lock()
	conns := r.conns
	r.conns = map[string]*peerConn{}
	r.Unlock()

	for _, pc := range conns {
		pc.Lock()
		if pc.conn != nil {
			pc.conn.Close()
			pc.conn = nil
		}
		pc.Unlock()
	}
}

func writeLine(conn net.Conn, line []byte, timeout time.Duration) error {
	if timeout != 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
	} else {
		conn.SetWriteDeadline(time.Time{})
	}
	_, err := conn.Write(line)
	return err
}
