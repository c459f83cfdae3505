package types

import (
	"strconv"

	"golang.org/x/xerrors"
)

// ErrMalformedCommand is returned when the arguments of a known command can't
// be parsed. Only the offending command is dropped.
var ErrMalformedCommand = xerrors.New("malformed command")

// Message defines the type of message that can be marshalled/unmarshalled over
// the network. A message travels as its Name followed by its arguments,
// separated by whitespace.
type Message interface {
	NewEmpty() Message
	Name() string
	String() string
	// Args returns the whitespace separated arguments that follow the name.
	Args() []string
	// SetArgs fills the message from its arguments.
	SetArgs(args []string) error
}

// PartyID identifies a party. It is also the x coordinate at which the party's
// share is evaluated, so it is never 0.
type PartyID uint64

// String implements fmt.Stringer
func (id PartyID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParsePartyID reads a base-10, nonzero party id.
func ParsePartyID(s string) (PartyID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("invalid party id %q: %v", s, err)
	}
	if n == 0 {
		return 0, xerrors.Errorf("party id must not be 0")
	}
	return PartyID(n), nil
}

func expectArgs(name string, args []string, n int) error {
	if len(args) != n {
		return xerrors.Errorf("%s expects %d arguments, got %d: %w", name, n, len(args), ErrMalformedCommand)
	}
	return nil
}

func parseUint(name, field, s string, bitSize int) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return 0, xerrors.Errorf("%s: bad %s %q: %w", name, field, s, ErrMalformedCommand)
	}
	return n, nil
}

func parseParty(name, s string) (PartyID, error) {
	id, err := ParsePartyID(s)
	if err != nil {
		return 0, xerrors.Errorf("%s: %v: %w", name, err, ErrMalformedCommand)
	}
	return id, nil
}
