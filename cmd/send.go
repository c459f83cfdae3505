package cmd

import (
	"bufio"
	"net"
	"time"

	"go.dedis.ch/mpcsum/transport"
	"golang.org/x/xerrors"
)

// SendCommand writes a single command line to the party listening on addr.
func SendCommand(addr string, command string, args []string, timeout time.Duration) error {
	msg := transport.Message{Type: command, Args: args}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return xerrors.Errorf("failed to dial %s: %v", addr, err)
	}
	defer conn.Close()

	err = conn.SetWriteDeadline(time.Now().Add(timeout))
	if err != nil {
		return xerrors.Errorf("failed to set deadline: %v", err)
	}

	w := bufio.NewWriter(conn)
	_, err = w.WriteString(msg.Encode() + "\n")
	if err != nil {
		return xerrors.Errorf("failed to write %s: %v", command, err)
	}

	return w.Flush()
}
