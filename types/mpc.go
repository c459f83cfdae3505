package types

import (
	"fmt"
	"strconv"
)

// -----------------------------------------------------------------------------
// HelloMessage

// NewEmpty implements types.Message.
func (m HelloMessage) NewEmpty() Message {
	return &HelloMessage{}
}

// Name implements types.Message.
func (HelloMessage) Name() string {
	return "HELLO"
}

// String implements types.Message.
func (m HelloMessage) String() string {
	return fmt.Sprintf("{hello from port %d}", m.Port)
}

// Args implements types.Message.
func (m HelloMessage) Args() []string {
	return []string{strconv.FormatUint(uint64(m.Port), 10)}
}

// SetArgs implements types.Message.
func (m *HelloMessage) SetArgs(args []string) error {
	err := expectArgs(m.Name(), args, 1)
	if err != nil {
		return err
	}
	port, err := parseUint(m.Name(), "port", args[0], 16)
	if err != nil {
		return err
	}
	m.Port = uint16(port)
	return nil
}

// -----------------------------------------------------------------------------
// CommunicateSharesMessage

// NewEmpty implements types.Message.
func (m CommunicateSharesMessage) NewEmpty() Message {
	return &CommunicateSharesMessage{}
}

// Name implements types.Message.
func (CommunicateSharesMessage) Name() string {
	return "COMMUNICATE_SHARES"
}

// String implements types.Message.
func (m CommunicateSharesMessage) String() string {
	return "{communicate shares}"
}

// Args implements types.Message.
func (m CommunicateSharesMessage) Args() []string {
	return nil
}

// SetArgs implements types.Message. Trailing arguments are ignored.
func (m *CommunicateSharesMessage) SetArgs(args []string) error {
	return nil
}

// -----------------------------------------------------------------------------
// ReceiveShareMessage

// NewEmpty implements types.Message.
func (m ReceiveShareMessage) NewEmpty() Message {
	return &ReceiveShareMessage{}
}

// Name implements types.Message.
func (ReceiveShareMessage) Name() string {
	return "RECEIVE_SHARE"
}

// String implements types.Message.
func (m ReceiveShareMessage) String() string {
	return fmt.Sprintf("{share from %d: (%d, %d)}", m.Sender, m.X, m.Y)
}

// Args implements types.Message.
func (m ReceiveShareMessage) Args() []string {
	return []string{
		m.Sender.String(),
		strconv.FormatUint(m.X, 10),
		strconv.FormatUint(m.Y, 10),
	}
}

// SetArgs implements types.Message.
func (m *ReceiveShareMessage) SetArgs(args []string) error {
	err := expectArgs(m.Name(), args, 3)
	if err != nil {
		return err
	}
	sender, err := parseParty(m.Name(), args[0])
	if err != nil {
		return err
	}
	x, err := parseUint(m.Name(), "x", args[1], 64)
	if err != nil {
		return err
	}
	y, err := parseUint(m.Name(), "y", args[2], 64)
	if err != nil {
		return err
	}

	m.Sender, m.X, m.Y = sender, x, y
	return nil
}

// -----------------------------------------------------------------------------
// SumAndDistributeMessage

// NewEmpty implements types.Message.
func (m SumAndDistributeMessage) NewEmpty() Message {
	return &SumAndDistributeMessage{}
}

// Name implements types.Message.
func (SumAndDistributeMessage) Name() string {
	return "SUM_AND_DISTRIBUTE"
}

// String implements types.Message.
func (m SumAndDistributeMessage) String() string {
	return "{sum and distribute}"
}

// Args implements types.Message.
func (m SumAndDistributeMessage) Args() []string {
	return nil
}

// SetArgs implements types.Message.
func (m *SumAndDistributeMessage) SetArgs(args []string) error {
	return nil
}

// -----------------------------------------------------------------------------
// ReceiveSumMessage

// NewEmpty implements types.Message.
func (m ReceiveSumMessage) NewEmpty() Message {
	return &ReceiveSumMessage{}
}

// Name implements types.Message.
func (ReceiveSumMessage) Name() string {
	return "RECEIVE_SUM"
}

// String implements types.Message.
func (m ReceiveSumMessage) String() string {
	return fmt.Sprintf("{partial sum from %d: %d}", m.Sender, m.Sum)
}

// Args implements types.Message.
func (m ReceiveSumMessage) Args() []string {
	return []string{m.Sender.String(), strconv.FormatUint(m.Sum, 10)}
}

// SetArgs implements types.Message.
func (m *ReceiveSumMessage) SetArgs(args []string) error {
	err := expectArgs(m.Name(), args, 2)
	if err != nil {
		return err
	}
	sender, err := parseParty(m.Name(), args[0])
	if err != nil {
		return err
	}
	sum, err := parseUint(m.Name(), "sum", args[1], 64)
	if err != nil {
		return err
	}

	m.Sender, m.Sum = sender, sum
	return nil
}

// -----------------------------------------------------------------------------
// GiveResultMessage

// NewEmpty implements types.Message.
func (m GiveResultMessage) NewEmpty() Message {
	return &GiveResultMessage{}
}

// Name implements types.Message.
func (GiveResultMessage) Name() string {
	return "GIVE_RESULT"
}

// String implements types.Message.
func (m GiveResultMessage) String() string {
	return "{give result}"
}

// Args implements types.Message.
func (m GiveResultMessage) Args() []string {
	return nil
}

// SetArgs implements types.Message.
func (m *GiveResultMessage) SetArgs(args []string) error {
	return nil
}

// -----------------------------------------------------------------------------
// ShowSharesMessage

// NewEmpty implements types.Message.
func (m ShowSharesMessage) NewEmpty() Message {
	return &ShowSharesMessage{}
}

// Name implements types.Message.
func (ShowSharesMessage) Name() string {
	return "SHOW_SHARES"
}

// String implements types.Message.
func (m ShowSharesMessage) String() string {
	return "{show shares}"
}

// Args implements types.Message.
func (m ShowSharesMessage) Args() []string {
	return nil
}

// SetArgs implements types.Message.
func (m *ShowSharesMessage) SetArgs(args []string) error {
	return nil
}

// -----------------------------------------------------------------------------
// ShowSumsMessage

// NewEmpty implements types.Message.
func (m ShowSumsMessage) NewEmpty() Message {
	return &ShowSumsMessage{}
}

// Name implements types.Message.
func (ShowSumsMessage) Name() string {
	return "SHOW_SUMS"
}

// String implements types.Message.
func (m ShowSumsMessage) String() string {
	return "{show sums}"
}

// Args implements types.Message.
func (m ShowSumsMessage) Args() []string {
	return nil
}

// SetArgs implements types.Message.
func (m *ShowSumsMessage) SetArgs(args []string) error {
	return nil
}
