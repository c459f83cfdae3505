package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_parse_party_id(t *testing.T) {
	id, err := ParsePartyID("3")
	require.NoError(t, err)
	require.Equal(t, PartyID(3), id)
	require.Equal(t, "3", id.String())

	for _, s := range []string{"0", "-1", "x", "", "18446744073709551616"} {
		_, err := ParsePartyID(s)
		require.Error(t, err, s)
	}
}

func Test_messages_args(t *testing.T) {
	require.Equal(t, []string{"8080"}, HelloMessage{Port: 8080}.Args())
	require.Equal(t, []string{"2", "1", "8"}, ReceiveShareMessage{Sender: 2, X: 1, Y: 8}.Args())
	require.Equal(t, []string{"3", "14"}, ReceiveSumMessage{Sender: 3, Sum: 14}.Args())
	require.Empty(t, GiveResultMessage{}.Args())

	names := []string{
		HelloMessage{}.Name(),
		CommunicateSharesMessage{}.Name(),
		ReceiveShareMessage{}.Name(),
		SumAndDistributeMessage{}.Name(),
		ReceiveSumMessage{}.Name(),
		GiveResultMessage{}.Name(),
		ShowSharesMessage{}.Name(),
		ShowSumsMessage{}.Name(),
	}
	require.Equal(t, []string{
		"HELLO", "COMMUNICATE_SHARES", "RECEIVE_SHARE", "SUM_AND_DISTRIBUTE",
		"RECEIVE_SUM", "GIVE_RESULT", "SHOW_SHARES", "SHOW_SUMS",
	}, names)
}

func Test_messages_set_args(t *testing.T) {
	share := ReceiveShareMessage{}
	require.NoError(t, share.SetArgs([]string{"2", "1", "8"}))
	require.Equal(t, ReceiveShareMessage{Sender: 2, X: 1, Y: 8}, share)

	sum := ReceiveSumMessage{}
	require.NoError(t, sum.SetArgs([]string{"3", "14"}))
	require.Equal(t, ReceiveSumMessage{Sender: 3, Sum: 14}, sum)

	hello := HelloMessage{}
	require.NoError(t, hello.SetArgs([]string{"1234"}))
	require.Equal(t, uint16(1234), hello.Port)

	// commands without arguments ignore extra ones
	require.NoError(t, (&GiveResultMessage{}).SetArgs([]string{"now"}))
}

func Test_messages_malformed(t *testing.T) {
	cases := []struct {
		msg  Message
		args []string
	}{
		{&HelloMessage{}, nil},
		{&HelloMessage{}, []string{"70000"}},
		{&ReceiveShareMessage{}, []string{"2", "1"}},
		{&ReceiveShareMessage{}, []string{"0", "1", "8"}},
		{&ReceiveShareMessage{}, []string{"2", "one", "8"}},
		{&ReceiveShareMessage{}, []string{"2", "1", "-8"}},
		{&ReceiveSumMessage{}, []string{"3"}},
		{&ReceiveSumMessage{}, []string{"3", "1.5"}},
	}

	for _, c := range cases {
		err := c.msg.SetArgs(c.args)
		require.ErrorIs(t, err, ErrMalformedCommand, "%s %v", c.msg.Name(), c.args)
	}
}
