package types

// HelloMessage is the handshake sent on every new outbound stream. Port is the
// listening port of the sender, so the receiver can attribute the stream.
type HelloMessage struct {
	Port uint16
}

// CommunicateSharesMessage asks a party to split its secret and send one share
// to every peer.
type CommunicateSharesMessage struct{}

// ReceiveShareMessage carries the share of Sender's secret evaluated at the
// receiver's id.
type ReceiveShareMessage struct {
	Sender PartyID
	X      uint64
	Y      uint64
}

// SumAndDistributeMessage asks a party to add up the shares it holds and send
// the partial sum to every peer.
type SumAndDistributeMessage struct{}

// ReceiveSumMessage carries Sender's partial sum.
type ReceiveSumMessage struct {
	Sender PartyID
	Sum    uint64
}

// GiveResultMessage asks a party to reconstruct the global sum.
type GiveResultMessage struct{}

// ShowSharesMessage asks a party to log the shares it holds.
type ShowSharesMessage struct{}

// ShowSumsMessage asks a party to log the partial sums it holds.
type ShowSumsMessage struct{}

// ShareRecord is a share held by a party: the share of Origin's secret
// evaluated at X.
type ShareRecord struct {
	Origin PartyID `json:"origin"`
	X      uint64  `json:"x"`
	Y      uint64  `json:"y"`
}

// SumRecord is the partial sum computed by Origin.
type SumRecord struct {
	Origin PartyID `json:"origin"`
	Sum    uint64  `json:"sum"`
}
