package mpc

import (
	"context"
	"sync"
	"time"

	"go.dedis.ch/mpcsum/metrics"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
)

// RoundState is the state of a protocol round.
type RoundState string

const (
	AwaitingShares RoundState = "AwaitingShares"
	AwaitingSums   RoundState = "AwaitingSums"
	Ready          RoundState = "Ready"
)

// round is a barrier over the parties of a run: it becomes Ready once a record
// from every expected party arrived. It never goes back.
type round struct {
	sync.Mutex
	name     string
	awaiting RoundState
	expected map[types.PartyID]struct{}
	arrived  map[types.PartyID]struct{}
	ready    chan struct{}
}

func newRound(name string, awaiting RoundState, parties []types.PartyID) *round {
	expected := make(map[types.PartyID]struct{}, len(parties))
	for _, id := range parties {
		expected[id] = struct{}{}
	}
	return &round{
		name:     name,
		awaiting: awaiting,
		expected: expected,
		arrived:  map[types.PartyID]struct{}{},
		ready:    make(chan struct{}),
	}
}

// arrive counts a record from id. It returns false if id is not expected.
func (r *round) arrive(id types.PartyID) bool {
	r.Lock()
	defer r.Unlock()

	_, ok := r.expected[id]
	if !ok {
		return false
	}
	if len(r.arrived) == len(r.expected) {
		return true
	}

	r.arrived[id] = struct{}{}
	if len(r.arrived) == len(r.expected) {
		close(r.ready)
	}
	return true
}

func (r *round) state() RoundState {
	select {
	case <-r.ready:
		return Ready
	default:
		return r.awaiting
	}
}

// count returns the number of distinct parties that arrived.
func (r *round) count() int {
	r.Lock()
	defer r.Unlock()
	return len(r.arrived)
}

// missing returns the parties not heard from yet.
func (r *round) missing() []types.PartyID {
	r.Lock()
	defer r.Unlock()
	ids := []types.PartyID{}
	for id := range r.expected {
		if _, ok := r.arrived[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// wait blocks until the round is Ready, the timeout expires or ctx is done.
// A zero timeout waits for ctx only.
func (r *round) wait(ctx context.Context, timeout time.Duration) error {
	start := time.Now()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case <-r.ready:
		metrics.ObserveRoundWait(r.name, metrics.RoundReady, start)
		return nil
	case <-ctx.Done():
		metrics.ObserveRoundWait(r.name, metrics.RoundTimeout, start)
		return xerrors.Errorf("%s round: %d/%d parties, missing %v: %w",
			r.name, r.count(), len(r.expected), r.missing(), ErrRoundIncomplete)
	}
}
