package peer

import (
	"context"

	"go.dedis.ch/mpcsum/types"
)

// MPC describes the secure summation protocol run by a party. Every method
// can be called in any order and any number of times; rounds that depend on
// data from the other parties wait for it up to the configured round timeout.
type MPC interface {
	// CommunicateShares splits the party's secret and sends one share to
	// every peer, keeping its own.
	CommunicateShares(ctx context.Context) error

	// SumAndDistribute waits for a share from every party, adds them up and
	// sends the partial sum to every peer. It returns the partial sum.
	SumAndDistribute(ctx context.Context) (uint64, error)

	// GiveResult waits for the partial sums and reconstructs the global sum.
	GiveResult(ctx context.Context) (uint64, error)

	// GetShares returns a copy of the share store, in arrival order.
	GetShares() []types.ShareRecord

	// GetSums returns a copy of the sum store, in arrival order.
	GetSums() []types.SumRecord

	// GetResult returns the last reconstructed global sum, if any.
	GetResult() (uint64, bool)

	// GetSecret returns the party's secret.
	GetSecret() uint64

	// SetSecret replaces the secret shared by the next CommunicateShares. It
	// must be an element of the field.
	SetSecret(n uint64) error
}
